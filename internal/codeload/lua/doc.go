// Package lua implements a codeload.Facility on top of gopher-lua.
//
// Every staged container and search-path entry becomes a module root. A type
// name maps to a module path ("acme.PluginRadar" -> "acme/PluginRadar.lua")
// and resolving it requires the module in one shared Lua state, the way a
// class loader would. A plugin type is a module returning a class created
// from the framework base class:
//
//	local Plugin = require("plugkit.plugin")
//	local Radar = Plugin:extend("Radar")
//
//	Radar.version = "1.2.0"
//	Radar.settings = { range = 64 }
//
//	function Radar:init(env)
//	    -- env.configDir, env.revision
//	end
//
//	function Radar:upgradeSettings(m)
//	    -- m.fromRevision, m.toRevision, m.configDir, m.oldConfigDir
//	end
//
//	return Radar
//
// Modules under the plugkit. namespace are provided by the host. Requiring
// one that does not exist is reported as a missing framework type, which the
// scanner treats as a sign that the container targets another framework
// revision.
//
// Loaded code runs with full trust: all standard libraries are open.
package lua
