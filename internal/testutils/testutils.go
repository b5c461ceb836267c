package testutils

import (
	"testing"
	"time"

	"github.com/nfrund/vrpanel/internal/config"
)

// ConfigForAppliance points a config.Config at a fake appliance. It uses
// t.Setenv, so the test must not run in parallel.
func ConfigForAppliance(t *testing.T, a *Appliance) *config.Config {
	t.Helper()

	t.Setenv(config.EnvServerURL, a.Server.URL)
	t.Setenv(config.EnvSocketURL, "")
	t.Setenv(config.EnvReconnectDelay, (50 * time.Millisecond).String())
	t.Setenv(config.EnvDialTimeout, "")
	t.Setenv(config.EnvHTTPTimeout, "")
	t.Setenv(config.EnvWSDriver, "")
	t.Setenv(config.EnvCoverCacheDir, t.TempDir())

	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("failed to build config for appliance: %v", err)
	}
	return cfg
}
