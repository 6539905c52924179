package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, []string{"error", "warn", "log"}, cfg.Console.Include)
	require.True(t, cfg.Network.CaptureBody)
	require.Equal(t, 51200, cfg.Network.MaxBodySize)
	require.Equal(t, []string{"password", "token", "authorization", "cookie"}, cfg.Redact.Fields)
	require.Equal(t, 5000, cfg.Hub.HTTPPort)
	require.Equal(t, 4999, cfg.Hub.WSPort)
	require.False(t, cfg.Session.AutoStart)
	require.True(t, cfg.Session.CaptureStorage)
	require.Empty(t, Validate(cfg))
}

func TestExpandConsoleLevelAliases(t *testing.T) {
	require.ElementsMatch(t, []string{"log", "debug", "warn", "error"}, ExpandConsoleLevels([]string{"all"}))
	require.ElementsMatch(t, []string{"error"}, ExpandConsoleLevels([]string{"errors"}))
	require.ElementsMatch(t, []string{"error", "warn"}, ExpandConsoleLevels([]string{"errors-and-warnings"}))
	require.ElementsMatch(t, []string{"warn"}, ExpandConsoleLevels([]string{"warn", "bogus"}))
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysOnlyPresentSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daibug.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hub":{"httpPort":6000,"wsPort":6001}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 6000, cfg.Hub.HTTPPort)
	require.Equal(t, 6001, cfg.Hub.WSPort)
	// untouched sections keep defaults
	require.Equal(t, []string{"password", "token", "authorization", "cookie"}, cfg.Redact.Fields)
}

func TestValidateCatchesPortsOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Hub.HTTPPort = 0
	cfg.Hub.WSPort = 70000
	errs := Validate(cfg)
	require.Len(t, errs, 2)
}

func TestValidateCatchesWatchRuleWithNoConditions(t *testing.T) {
	cfg := Default()
	cfg.Watch = []WatchRuleSpec{{Label: "no conditions"}}
	errs := Validate(cfg)
	require.Contains(t, errs, `watch rule "no conditions" has no conditions`)
}

func TestValidateCatchesWatchRuleWithNoLabel(t *testing.T) {
	cfg := Default()
	cfg.Watch = []WatchRuleSpec{{URLPattern: "/api/**"}}
	errs := Validate(cfg)
	require.Contains(t, errs, "watch rule missing label")
}
