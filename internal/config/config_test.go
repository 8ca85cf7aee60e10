package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"CONFIG_FILE", "TELEGRAM_TOKEN", "TELEGRAM_RATE", "STORE_DRIVER", "REDIS_URL",
	"DATABASE_URL", "SQLITE_PATH", "STATE_FILE", "ALLOWLIST_FILE", "REFRESH_INTERVAL",
	"REFRESH_WORKERS", "FETCH_TIMEOUT", "VALIDATE_TIMEOUT", "LOG_LEVEL", "LOG_FILE",
	"FEEDBOT_TEST_SECRET",
}

// cleanEnv runs the test in an empty directory with every known key unset;
// the previous values come back on cleanup.
func cleanEnv(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnv_RequiresToken(t *testing.T) {
	cleanEnv(t)
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error without TELEGRAM_TOKEN")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "tok")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.StoreDriver != DriverRedis || c.RedisURL != "redis://127.0.0.1:6379/0" {
		t.Fatalf("unexpected store defaults %+v", c)
	}
	if c.RefreshInterval != 15*time.Minute || c.FetchTimeout != 5*time.Second || c.ValidateTimeout != 10*time.Second {
		t.Fatalf("unexpected timing defaults %+v", c)
	}
	if c.RefreshWorkers != 4 || c.TelegramRate != 25 {
		t.Fatalf("unexpected worker defaults %+v", c)
	}
	if c.AllowlistFile != "allowed_user_ids.txt" || c.StateFile != "dialogues.json" || c.SQLitePath != "feedbot.db" {
		t.Fatalf("unexpected path defaults %+v", c)
	}
	if c.Log.Level != "info" {
		t.Fatalf("unexpected log level %q", c.Log.Level)
	}
}

func TestFromEnv_EnvOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/lib/feedbot/state.db")
	t.Setenv("REFRESH_INTERVAL", "90s")
	t.Setenv("REFRESH_WORKERS", "8")
	t.Setenv("TELEGRAM_RATE", "1.5")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.StoreDriver != DriverSQLite || c.SQLitePath != "/var/lib/feedbot/state.db" {
		t.Fatalf("unexpected store %+v", c)
	}
	if c.RefreshInterval != 90*time.Second || c.RefreshWorkers != 8 || c.TelegramRate != 1.5 {
		t.Fatalf("unexpected overrides %+v", c)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":     "mongo",
		"REFRESH_INTERVAL": "soon",
		"FETCH_TIMEOUT":    "-1s",
		"REFRESH_WORKERS":  "0",
		"TELEGRAM_RATE":    "fast",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv("TELEGRAM_TOKEN", "tok")
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestFromEnv_YAMLFile(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "feedbot.yaml")
	yaml := `
telegram_token: ${FEEDBOT_TEST_SECRET}
store_driver: postgres
database_url: postgres://bot@db/feeds
refresh_interval: 5m
refresh_workers: 2
log:
  level: debug
  file: /tmp/feedbot.log
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("FEEDBOT_TEST_SECRET", "from-env")
	t.Setenv("REFRESH_WORKERS", "6")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.TelegramToken != "from-env" {
		t.Fatalf("variable not expanded: %q", c.TelegramToken)
	}
	if c.StoreDriver != DriverPostgres || c.DBConnString != "postgres://bot@db/feeds" {
		t.Fatalf("unexpected store %+v", c)
	}
	if c.RefreshInterval != 5*time.Minute {
		t.Fatalf("unexpected interval %v", c.RefreshInterval)
	}
	if c.RefreshWorkers != 6 {
		t.Fatalf("env should override file, got %d", c.RefreshWorkers)
	}
	if c.Log.Level != "debug" || c.Log.File != "/tmp/feedbot.log" {
		t.Fatalf("unexpected log config %+v", c.Log)
	}
}

func TestFromEnv_DotEnv(t *testing.T) {
	cleanEnv(t)
	if err := os.WriteFile(".env", []byte("TELEGRAM_TOKEN=dotenv-token\nSTORE_DRIVER=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORE_DRIVER", "sqlite")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.TelegramToken != "dotenv-token" {
		t.Fatalf("token not read from .env: %q", c.TelegramToken)
	}
	if c.StoreDriver != DriverSQLite {
		t.Fatalf(".env should not override the environment, got %q", c.StoreDriver)
	}
}
