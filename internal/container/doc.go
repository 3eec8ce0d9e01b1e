// Package container models the discrete locations (archives, directories and
// search-path entries) that may hold plugin code, together with the metadata
// document each one declares.
//
// A Container is created by a locator during discovery, mutated by the
// resolver, and frozen when discovery finalizes. Mutating a frozen container
// panics; this guards orchestration bugs rather than bad input.
//
// The metadata document is plugin.toml at the container root:
//
//	name = "Minimap"
//	version = "2.1.0"
//	framework = "1.12"
//	revision = 4.0
//	author = "someone"
//	description = "Shows a minimap"
//	dependsOn = "core-lib, renderer"
//	requiredCapabilities = "overlay"
//	extension = "minimap.Bootstrap"
//	extensionPriority = 100
//	transformers = "minimap.PatchA, minimap.PatchB"
//	searchPaths = "lib/extra.zip"
//
//	[descriptions]
//	de = "Zeigt eine Minikarte"
package container
