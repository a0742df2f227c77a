// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/crosscheck/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Keep config discovery away from the developer's working tree.
	t.Chdir(t.TempDir())

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	Version = "1.2.3-test"
	t.Cleanup(func() { Version = "1.0" })

	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3-test")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "crosscheck 1.0")
}

func TestUnitsCmd(t *testing.T) {
	out, err := execute(t, "units", "--tag", "api")
	require.NoError(t, err)
	assert.Contains(t, out, "search-api")
	assert.Contains(t, out, "inventory-schema")
	assert.NotContains(t, out, "homepage-loads")
}

func TestRunCmd_RequiresToleranceMode(t *testing.T) {
	_, err := execute(t, "run", "--unit", "search-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consistency.mode is required")
}

func TestRunCmd_UnknownUnit(t *testing.T) {
	_, err := execute(t, "run", "--tolerance-mode", "absolute", "--tolerance", "1", "--unit", "nope")
	assert.EqualError(t, err, "unknown unit: nope")
}

func TestInitializeConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crosscheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("consistency:\n  mode: relative\n  tolerance: 0.01\nrunner:\n  workers: 4\n"), 0o600))
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("CROSSCHECK_RUNNER_WORKERS=6\n"), 0o600))
	t.Setenv("CROSSCHECK_RUNNER_WORKERS", "")
	require.NoError(t, os.Unsetenv("CROSSCHECK_RUNNER_WORKERS"))

	v := viper.New()
	config.SetDefaults(v)
	root := newRootCommand(v)
	root.SetArgs([]string{"--config", cfgPath, "--env-file", envPath, "--remote-url", "http://pool.test:9222", "units"})
	root.SetOut(&bytes.Buffer{})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Equal(t, "relative", v.GetString("consistency.mode"))
	assert.Equal(t, 6, v.GetInt("runner.workers"), "environment overrides the config file")
	assert.Equal(t, "http://pool.test:9222", v.GetString("browser.remote_url"), "flags override everything")
}

func TestInitializeConfig_MissingExplicitFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "units")
	assert.ErrorContains(t, err, "error reading config file")
}
