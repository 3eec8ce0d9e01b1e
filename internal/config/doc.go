// Package config provides the bootstrap configuration for plugkit.
//
// Configuration is read from a TOML file and then overridden by PLUGKIT_*
// environment variables:
//
//	pluginDirs = ["~/.config/plugkit/plugins", "./plugins"]
//	profile = "default"
//	frameworkVersion = "1.4"
//	frameworkRevision = 3
//	capabilities = ["net", "storage"]
//	scanPrefixes = ["Plugin"]
//
//	PLUGKIT_PROFILE=server PLUGKIT_CAPABILITIES=net,gpu plugkit
//
// A missing file is not an error; defaults apply.
package config
