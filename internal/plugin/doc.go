// Package plugin manages the lifecycle of Folio plugins.
//
// A plugin is a directory holding a package.json manifest, an optional
// plugin-local config file (folio.toml or folio.yaml) and an optional
// entry module. A Handle drives one plugin through three steps:
//
//	h, err := plugin.New("comments", dir, host)
//	if err != nil {
//	    return err
//	}
//	h.InitializeWithLifecycleLogging(ctx)
//
// which is shorthand for Prepare, then Initialize (which loads the entry
// module) with logging and a plugin-loaded:<name> event.
//
// # Manifest
//
// Folio metadata lives under a namespaced key of package.json:
//
//	{
//	  "name": "folio-comments",
//	  "version": "1.2.0",
//	  "main": "init.lua",
//	  "folio": {
//	    "config": {"moderation": true, "perPage": 20},
//	    "assets": {"styles": ["comments.css"]},
//	    "configFile": "comments.toml"
//	  }
//	}
//
// The namespaced config holds defaults. Values from the plugin-local config
// file override them, and the host's fragment for the plugin overrides both.
//
// # Entry Modules
//
// main names either a Lua file or a compiled-in Go module ("go:<name>").
// The module's entry is resolved to one of three shapes:
//
//   - EntryDirect: the module is itself the init function
//   - EntryObject: the module has an init function
//   - EntryNone: nothing to run
//
// The init function is called as init(config, host, done). It completes
// when done is called, when a returned thenable settles, or on return
// when it declares fewer than three parameters. Whatever happens first
// wins. A Lua entry looks like:
//
//	return function(config, host, done)
//	  host:log("starting " .. host.name)
//	  folio.defer(done)
//	end
//
// Go modules register themselves with Register:
//
//	func init() {
//	    plugin.Register("comments", plugin.SyncInitFunc(setup))
//	}
//
// # Thread Safety
//
// Handle methods are safe for concurrent use. The Manager initializes
// different plugins in parallel, so Host implementations must accept
// concurrent calls.
package plugin
