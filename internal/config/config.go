// Package config loads and persists the peerlink configuration. It is split
// across two TOML files: config.toml (world-readable) and secrets.toml
// (0600, access token and TURN secret).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/utc-chat/peerlink/pkg/protocol"
)

// DefaultSTUNServers are the STUN servers used when none are configured.
var DefaultSTUNServers = []string{protocol.FallbackICEServer}

// secretsFileName is the name of the secrets file within the config directory.
const secretsFileName = "secrets.toml"

// Config is the top-level configuration for peerlink.
type Config struct {
	Network NetworkConfig `toml:"network"`
	Device  DeviceConfig  `toml:"device"`
	STUN    STUNConfig    `toml:"stun"`
	TURN    TURNConfig    `toml:"turn"`
	Call    CallConfig    `toml:"call"`
}

// NetworkConfig identifies the signalling hub this device talks to.
type NetworkConfig struct {
	// Name is a human-readable name for this network.
	Name string `toml:"name"`

	// ServerURL is the WS/WSS URL of the signalling hub.
	ServerURL string `toml:"server_url"`

	// AccessToken is the bearer token presented when dialing the hub.
	AccessToken string `toml:"access_token,omitempty"`
}

// DeviceConfig identifies this device.
type DeviceConfig struct {
	// Name is this device's peer id on the hub (e.g. "laptop").
	Name string `toml:"name"`

	// PartyID identifies this device within a user's device set. Generated
	// by `peerlink genid` and committed to by the remote side when it
	// accepts our invite or answer.
	PartyID string `toml:"party_id"`

	// ForceRelay forces all WebRTC connections through the TURN relay,
	// bypassing direct (host/srflx) connectivity.
	ForceRelay bool `toml:"force_relay,omitempty"`
}

// STUNConfig lists the STUN servers used for ICE NAT traversal.
type STUNConfig struct {
	// Servers is a list of STUN server URIs.
	Servers []string `toml:"servers"`
}

// TURNConfig configures the optional TURN relay. Credentials are derived
// from the shared secret per the TURN REST API convention.
type TURNConfig struct {
	// Server is the TURN server URI (e.g. "turn:turn.example.org:3478").
	Server string `toml:"server,omitempty"`

	// Secret is the shared secret used to derive time-limited credentials.
	Secret string `toml:"secret,omitempty"`

	// CredentialTTLHours is the validity window of derived credentials.
	// Zero means the default lifetime.
	CredentialTTLHours int `toml:"credential_ttl_hours,omitempty"`
}

// CallConfig tunes call behavior.
type CallConfig struct {
	// TimeoutMS bounds how long an invite may ring before it is abandoned,
	// in milliseconds. Zero means the protocol default.
	TimeoutMS int64 `toml:"timeout_ms,omitempty"`
}

// configFile is the TOML representation for config.toml (no secrets).
type configFile struct {
	Network netConfigFile  `toml:"network"`
	Device  DeviceConfig   `toml:"device"`
	STUN    STUNConfig     `toml:"stun"`
	TURN    turnConfigFile `toml:"turn"`
	Call    CallConfig     `toml:"call"`
}

type netConfigFile struct {
	Name      string `toml:"name"`
	ServerURL string `toml:"server_url"`
}

type turnConfigFile struct {
	Server             string `toml:"server,omitempty"`
	CredentialTTLHours int    `toml:"credential_ttl_hours,omitempty"`
}

// secretsFile is the TOML representation for secrets.toml (0600).
type secretsFile struct {
	Network netSecretsFile  `toml:"network"`
	TURN    turnSecretsFile `toml:"turn"`
}

type netSecretsFile struct {
	AccessToken string `toml:"access_token,omitempty"`
}

type turnSecretsFile struct {
	Secret string `toml:"secret,omitempty"`
}

// toConfigFile extracts the non-secret fields from a Config for config.toml.
func toConfigFile(cfg *Config) *configFile {
	return &configFile{
		Network: netConfigFile{
			Name:      cfg.Network.Name,
			ServerURL: cfg.Network.ServerURL,
		},
		Device: cfg.Device,
		STUN:   cfg.STUN,
		TURN: turnConfigFile{
			Server:             cfg.TURN.Server,
			CredentialTTLHours: cfg.TURN.CredentialTTLHours,
		},
		Call: cfg.Call,
	}
}

// toSecretsFile extracts the secret fields from a Config for secrets.toml.
func toSecretsFile(cfg *Config) *secretsFile {
	return &secretsFile{
		Network: netSecretsFile{
			AccessToken: cfg.Network.AccessToken,
		},
		TURN: turnSecretsFile{
			Secret: cfg.TURN.Secret,
		},
	}
}

// mergeSecrets overlays secret fields from a secretsFile onto a Config.
func mergeSecrets(cfg *Config, s *secretsFile) {
	cfg.Network.AccessToken = s.Network.AccessToken
	cfg.TURN.Secret = s.TURN.Secret
}

// DefaultConfig returns a Config populated with sensible defaults.
// Network- and device-specific fields are left empty and must be filled in
// by the user.
func DefaultConfig() *Config {
	return &Config{
		STUN: STUNConfig{
			Servers: append([]string(nil), DefaultSTUNServers...),
		},
		Call: CallConfig{
			TimeoutMS: protocol.CallTimeoutMS,
		},
	}
}

// DefaultConfigPath returns the default path for the peerlink config file
// (~/.config/peerlink/config.toml, honoring XDG_CONFIG_HOME).
func DefaultConfigPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determining home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "peerlink", "config.toml"), nil
}

// SecretsPathFromConfig derives the secrets.toml path from a config.toml
// path, keeping secrets.toml alongside config.toml.
func SecretsPathFromConfig(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), secretsFileName)
}

// LoadConfig reads config.toml and secrets.toml from the config directory,
// merging them into a single Config. If config.toml does not exist, it
// returns an error wrapping fs.ErrNotExist. If secrets.toml does not exist,
// the secret fields are left at their zero values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	applyDefaults(cfg)

	// Load secrets from the companion file.
	secretsPath := SecretsPathFromConfig(path)
	var sec secretsFile
	if _, err := toml.DecodeFile(secretsPath, &sec); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading secrets file %s: %w", secretsPath, err)
		}
		// secrets.toml missing — leave secret fields at zero values.
	} else {
		mergeSecrets(cfg, &sec)
	}

	return cfg, nil
}

// SaveConfig writes both config.toml and secrets.toml to the directory
// containing path. Parent directories are created with mode 0755 if they
// don't exist. secrets.toml is written 0600.
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	if err := writeFile(path, 0644, toConfigFile(cfg)); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	secretsPath := SecretsPathFromConfig(path)
	if err := writeFile(secretsPath, 0600, toSecretsFile(cfg)); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}

	return nil
}

// writeFile encodes v as TOML and writes it to path with the given file mode.
// If the file already exists with different permissions, they are corrected.
func writeFile(path string, mode os.FileMode, v interface{}) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	// Ensure permissions are correct even if the file already existed
	// with different permissions (WriteFile only sets mode on creation).
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}

	return nil
}

// ParseTOML decodes a TOML config from a string.
func ParseTOML(s string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(s, cfg); err != nil {
		return nil, fmt.Errorf("decoding TOML config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// MarshalTOML encodes a Config to a TOML string.
func MarshalTOML(cfg *Config) (string, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encoding TOML config: %w", err)
	}
	return buf.String(), nil
}

// applyDefaults fills in default values for optional fields that are
// zero-valued after TOML decoding.
func applyDefaults(cfg *Config) {
	if len(cfg.STUN.Servers) == 0 {
		cfg.STUN.Servers = append([]string(nil), DefaultSTUNServers...)
	}
	if cfg.Call.TimeoutMS <= 0 {
		cfg.Call.TimeoutMS = protocol.CallTimeoutMS
	}
}
