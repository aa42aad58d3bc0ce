// Package config provides user configuration management for the esplink CLI.
//
// This package manages a YAML-based configuration file that stores
// user-defined metadata for devices: dial addresses, display names and
// whether a device expects the encrypted transport. The configuration
// follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/esplink/config.yaml or $HOME/.config/esplink/config.yaml
//   - macOS: $HOME/.config/esplink/config.yaml
//   - Windows: %LOCALAPPDATA%\esplink\config.yaml
//
// # Security
//
// IMPORTANT: This package NEVER stores sensitive credentials such as device
// passwords or encryption keys. These are always prompted from the user
// when needed. The Encrypted flag on a device entry only records that a
// key prompt will be necessary.
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Register a device under a short name
//	registry.SetDevice("garden-lights", "192.168.1.40:6053", true)
//	registry.SetDeviceNickname("garden-lights", "Garden Lights")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Later: resolve a command-line target to a dial address
//	addr, device := registry.Resolve("garden-lights")
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
