package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so a developer's shell or a
// stray .env cannot leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{
		"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "REDIS_URL",
		"REGIONAL_CACHE_TTL", "CDC_BASE_URL", "CDC_APP_TOKEN",
		"CDC_RATE_PER_SECOND", "CDC_TIMEOUT", "REGIONAL_REFRESH_INTERVAL",
		"WORKER_COUNT", "JOB_TIMEOUT", "MAX_RETRIES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Port != "8080" || c.Env != "development" {
		t.Errorf("server defaults: got port=%q env=%q", c.Port, c.Env)
	}
	if c.StoreDriver != DriverSQLite || c.DatabaseURL != DefaultSQLiteDSN {
		t.Errorf("store defaults: got driver=%q dsn=%q", c.StoreDriver, c.DatabaseURL)
	}
	if c.RegionalCacheTTL != time.Hour {
		t.Errorf("RegionalCacheTTL: got %v", c.RegionalCacheTTL)
	}
	if c.CDCRatePerSecond != 2 || c.CDCTimeout != 15*time.Second {
		t.Errorf("CDC defaults: got rate=%v timeout=%v", c.CDCRatePerSecond, c.CDCTimeout)
	}
	if c.RefreshInterval != 30*time.Minute || c.WorkerCount != 2 || c.JobTimeout != 30*time.Second || c.MaxRetries != 3 {
		t.Errorf("worker defaults: got %+v", c)
	}
	if c.IsProduction() {
		t.Error("development config reported as production")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/fitcheck")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REGIONAL_CACHE_TTL", "90")
	t.Setenv("CDC_RATE_PER_SECOND", "0.5")
	t.Setenv("REGIONAL_REFRESH_INTERVAL", "2h")
	t.Setenv("WORKER_COUNT", "4")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.StoreDriver != DriverPostgres {
		t.Errorf("StoreDriver: got %q", c.StoreDriver)
	}
	if c.RegionalCacheTTL != 90*time.Second {
		t.Errorf("plain integer durations are seconds: got %v", c.RegionalCacheTTL)
	}
	if c.CDCRatePerSecond != 0.5 {
		t.Errorf("CDCRatePerSecond: got %v", c.CDCRatePerSecond)
	}
	if c.RefreshInterval != 2*time.Hour || c.WorkerCount != 4 {
		t.Errorf("worker overrides: got interval=%v workers=%d", c.RefreshInterval, c.WorkerCount)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}, "STORE_DRIVER"},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"zero workers", map[string]string{"WORKER_COUNT": "0"}, "WORKER_COUNT"},
		{"negative rate", map[string]string{"CDC_RATE_PER_SECOND": "-1"}, "CDC_RATE_PER_SECOND"},
		{"bad redis url", map[string]string{"REDIS_URL": "http://not-redis"}, "REDIS_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %s", err, tt.want)
			}
		})
	}
}
