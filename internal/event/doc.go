// Package event provides the host's in-process event bus.
//
// Events are named with colon-separated segments, such as
// "plugin-loaded:comments". Subscriptions take a pattern where '*' matches
// any run of characters and '?' a single character:
//
//	bus := event.NewBus()
//	sub, _ := bus.SubscribeFunc("plugin-loaded:*", func(e event.Event) {
//	    log.Printf("%s loaded", e.Name)
//	})
//	defer bus.Unsubscribe(sub)
//
//	bus.Publish("plugin-loaded:comments", handle, module, nil)
//
// Delivery is synchronous: Publish returns after every matching handler
// has run, in priority order. Handler panics are recovered and counted.
package event
