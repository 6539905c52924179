// config.go — Configuration schema and defaults (spec §6.3), expanded with
// the ambient logging/metrics sections named in SPEC_FULL.md. Grounded on
// the teacher's cmd/gasoline-cmd/config/loader.go: plain encoding/json
// decode into a typed struct, defaults applied post-decode, Validate
// returning a list of error strings rather than failing fast.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// WatchRuleSpec is one entry of the `watch` config list (spec §6.3/§4.6).
type WatchRuleSpec struct {
	Label           string   `json:"label"`
	Source          string   `json:"source,omitempty"`
	StatusCodes     []int    `json:"statusCodes,omitempty"`
	URLPattern      string   `json:"urlPattern,omitempty"`
	Methods         []string `json:"methods,omitempty"`
	Levels          []string `json:"levels,omitempty"`
	MessageContains string   `json:"messageContains,omitempty"`
}

type ConsoleConfig struct {
	Include []string `json:"include"`
}

type NetworkConfig struct {
	CaptureBody bool     `json:"captureBody"`
	MaxBodySize int      `json:"maxBodySize"`
	Ignore      []string `json:"ignore"`
}

type RedactConfig struct {
	Fields      []string `json:"fields"`
	URLPatterns []string `json:"urlPatterns"`
}

type HubConfig struct {
	HTTPPort int `json:"httpPort"`
	WSPort   int `json:"wsPort"`
}

type SessionConfig struct {
	AutoStart      bool `json:"autoStart"`
	CaptureStorage bool `json:"captureStorage"`
}

// LoggingConfig controls the internal structured logger (SPEC_FULL.md,
// never the event stream).
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// MetricsConfig controls the optional Prometheus endpoint (SPEC_FULL.md).
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Config is the full configuration schema.
type Config struct {
	Console  ConsoleConfig   `json:"console"`
	Network  NetworkConfig   `json:"network"`
	Watch    []WatchRuleSpec `json:"watch"`
	Redact   RedactConfig    `json:"redact"`
	Hub      HubConfig       `json:"hub"`
	Session  SessionConfig   `json:"session"`
	Logging  LoggingConfig   `json:"logging"`
	Metrics  MetricsConfig   `json:"metrics"`
}

// consoleAliases expands the console.include aliases named in spec §6.3.
var consoleAliases = map[string][]string{
	"all":                 {"log", "debug", "warn", "error"},
	"verbose":             {"log", "debug", "warn", "error"},
	"errors":              {"error"},
	"errors-and-warnings": {"error", "warn"},
}

var validConsoleLevels = map[string]bool{"log": true, "debug": true, "warn": true, "error": true}

// Default returns the fully-populated default Config (spec §6.3).
func Default() Config {
	return Config{
		Console: ConsoleConfig{Include: []string{"error", "warn", "log"}},
		Network: NetworkConfig{CaptureBody: true, MaxBodySize: 51200, Ignore: nil},
		Watch:   nil,
		Redact:  RedactConfig{Fields: []string{"password", "token", "authorization", "cookie"}},
		Hub:     HubConfig{HTTPPort: 5000, WSPort: 4999},
		Session: SessionConfig{AutoStart: false, CaptureStorage: true},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Enabled: false, Port: 9477},
	}
}

// Load reads and decodes a config file at path, returning defaults merged
// with whatever keys the file sets. A missing file or empty path yields
// defaults with no error — mirrors the teacher's loader treating a missing
// config file as "use defaults", not a fatal condition.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied via --config
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	// Decode into the zero-valued struct first so we can tell which
	// top-level sections the file actually set, then selectively overlay
	// onto defaults (decoding straight into cfg would leave defaulted
	// slices appended to by json.Unmarshal's merge semantics, which is not
	// what "file sets console.include" should mean).
	var raw Config
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if _, ok := probe["console"]; ok {
		cfg.Console = raw.Console
	}
	if _, ok := probe["network"]; ok {
		cfg.Network = raw.Network
	}
	if _, ok := probe["watch"]; ok {
		cfg.Watch = raw.Watch
	}
	if _, ok := probe["redact"]; ok {
		cfg.Redact = raw.Redact
	}
	if _, ok := probe["hub"]; ok {
		cfg.Hub = raw.Hub
	}
	if _, ok := probe["session"]; ok {
		cfg.Session = raw.Session
	}
	if _, ok := probe["logging"]; ok {
		cfg.Logging = raw.Logging
	}
	if _, ok := probe["metrics"]; ok {
		cfg.Metrics = raw.Metrics
	}

	cfg.Console.Include = ExpandConsoleLevels(cfg.Console.Include)
	return cfg, nil
}

// ExpandConsoleLevels expands alias names (all/verbose/errors/
// errors-and-warnings) and drops unknown level names (spec §6.3).
func ExpandConsoleLevels(levels []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(l string) {
		if validConsoleLevels[l] && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range levels {
		if expansion, ok := consoleAliases[l]; ok {
			for _, e := range expansion {
				add(e)
			}
			continue
		}
		add(l)
	}
	return out
}

// Validate returns a list of error strings; an empty list means valid
// (spec §6.3). Never panics and never returns a Go error — validation
// failures are reported to the caller as data, matching the HTTP /config
// and CLI surfaces that need to display all problems at once.
func Validate(cfg Config) []string {
	var errs []string

	if cfg.Hub.HTTPPort < 1 || cfg.Hub.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("hub.httpPort out of range: %d", cfg.Hub.HTTPPort))
	}
	if cfg.Hub.WSPort < 1 || cfg.Hub.WSPort > 65535 {
		errs = append(errs, fmt.Sprintf("hub.wsPort out of range: %d", cfg.Hub.WSPort))
	}
	if cfg.Network.MaxBodySize < 0 {
		errs = append(errs, "network.maxBodySize must be >= 0")
	}
	for _, w := range cfg.Watch {
		if w.Label == "" {
			errs = append(errs, "watch rule missing label")
			continue
		}
		if w.URLPattern == "" && len(w.StatusCodes) == 0 && len(w.Methods) == 0 &&
			len(w.Levels) == 0 && w.MessageContains == "" {
			errs = append(errs, fmt.Sprintf("watch rule %q has no conditions", w.Label))
		}
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port out of range: %d", cfg.Metrics.Port))
	}
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level invalid: %s", cfg.Logging.Level))
	}
	return errs
}
