// Package config loads the scanner/dashboard client configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ReconnectConfig bounds the realtime channel's automatic reconnection.
type ReconnectConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
}

// Config is the full client configuration.
type Config struct {
	APIURL        string          `yaml:"api_url"`
	SocketURL     string          `yaml:"socket_url"`  // derived from api_url when empty
	ProbeAddr     string          `yaml:"probe_addr"`  // derived from api_url when empty
	StorePath     string          `yaml:"store_path"`  // dir, *.db file, or redis:// URL
	UseKeyring    bool            `yaml:"use_keyring"` // keep tokens in the OS credential manager
	QueueKey      string          `yaml:"queue_key"`
	QRSecret      string          `yaml:"qr_secret"`
	PollInterval  Duration        `yaml:"poll_interval"`
	ProbeInterval Duration        `yaml:"probe_interval"`
	Reconnect     ReconnectConfig `yaml:"reconnect"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	cfg := base()
	cfg.applyDerived()
	return cfg
}

// base holds the non-derived defaults. Load starts from here so a file
// that sets api_url alone still gets its socket URL and probe address
// derived from that value.
func base() Config {
	return Config{
		APIURL:        "http://localhost:3000/api/v1",
		StorePath:     defaultStorePath(),
		QueueKey:      "offline_scan_queue",
		PollInterval:  Duration(15 * time.Second),
		ProbeInterval: Duration(15 * time.Second),
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			BaseDelay:   Duration(2 * time.Second),
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gateline"
	}
	return home + "/.gateline"
}

// Load reads path, filling unset fields with defaults. A missing file
// yields the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := base()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDerived()
	return cfg, nil
}

// applyDerived fills SocketURL and ProbeAddr from APIURL when unset.
func (c *Config) applyDerived() {
	if c.SocketURL == "" {
		c.SocketURL = DeriveSocketURL(c.APIURL)
	}
	if c.ProbeAddr == "" {
		c.ProbeAddr = deriveProbeAddr(c.APIURL)
	}
}

// DeriveSocketURL maps the REST base URL to the live-events endpoint:
// strip the /api/v1 suffix, switch to the ws scheme, append /events.
func DeriveSocketURL(apiURL string) string {
	base := strings.TrimSuffix(strings.TrimRight(apiURL, "/"), "/api/v1")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/events"
}

func deriveProbeAddr(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "localhost:80"
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return u.Host + ":443"
	}
	return u.Host + ":80"
}
