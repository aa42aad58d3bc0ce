package config

import (
	"net"
	"time"
)

// DefaultPort is the TCP port the native device API listens on.
const DefaultPort = "6053"

// Registry represents the entire user configuration file.
// This stores user-defined metadata for devices and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by user-chosen device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single device.
// This is keyed by a user-chosen name in the Registry.
//
// Passwords and pre-shared keys are NEVER stored here. The Encrypted flag
// only records that the device expects the encrypted transport, so commands
// know to prompt for a key.
type Device struct {
	Address   string    `yaml:"address"`             // host or host:port
	Encrypted bool      `yaml:"encrypted,omitempty"` // device expects Noise-encrypted frames
	Nickname  string    `yaml:"nickname,omitempty"`  // Display name, e.g. "Garden Lights"
	LastSeen  time.Time `yaml:"last_seen,omitempty"` // Last successful connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`       // Per-request timeout for CLI commands
	ClientInfo     string `yaml:"client_info,omitempty"` // Client name advertised during the hello exchange
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			TimeoutSeconds: 10,
			ClientInfo:     "esplink",
		},
	}
}

// GetDevice retrieves device metadata by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(name string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[name]; exists {
		return device
	}

	device := &Device{}
	r.Devices[name] = device
	return device
}

// SetDevice records the address and encryption expectation for a device.
func (r *Registry) SetDevice(name, address string, encrypted bool) {
	device := r.EnsureDevice(name)
	device.Address = address
	device.Encrypted = encrypted
}

// SetDeviceNickname sets a user-friendly display name for a device.
func (r *Registry) SetDeviceNickname(name, nickname string) {
	device := r.EnsureDevice(name)
	device.Nickname = nickname
}

// UpdateDeviceLastSeen updates the last seen timestamp for a device.
func (r *Registry) UpdateDeviceLastSeen(name string) {
	device := r.EnsureDevice(name)
	device.LastSeen = time.Now()
}

// Resolve maps a command-line target to a dial address. When target names
// a registered device, its stored address is used and the registry entry is
// returned; otherwise target is treated as a literal address. Either way
// the result carries the default port when none was given.
func (r *Registry) Resolve(target string) (string, *Device) {
	device := r.GetDevice(target)
	addr := target
	if device != nil && device.Address != "" {
		addr = device.Address
	}
	return CompleteAddress(addr), device
}

// CompleteAddress appends the default API port when addr has none.
func CompleteAddress(addr string) string {
	if addr == "" {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, DefaultPort)
}
