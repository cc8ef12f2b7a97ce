package config

import (
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	for _, k := range []string{"API_PORT", "PORT", "APP_TIMEZONE", "DISPATCHER_LIMIT", "DISPATCHER_QUEUE", "TASK_TIMEOUT_SECONDS", "BOT_URL"} {
		t.Setenv(k, "")
	}

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", s.Port)
	}
	if s.Location == nil || s.Location.String() != "Europe/Moscow" {
		t.Fatalf("expected Europe/Moscow, got %v", s.Location)
	}
	if s.DispatcherLimit != 20 {
		t.Fatalf("expected dispatcher limit 20, got %d", s.DispatcherLimit)
	}
	if s.DispatcherQueue != 200 {
		t.Fatalf("expected dispatcher queue 200, got %d", s.DispatcherQueue)
	}
	if s.TaskTimeout != 300*time.Second {
		t.Fatalf("expected 300s task timeout, got %s", s.TaskTimeout)
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("DISPATCHER_LIMIT", "-3")
	t.Setenv("DISPATCHER_QUEUE", "-1")
	t.Setenv("BOT_URL", "http://bot.local/ ")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Port != "9090" {
		t.Fatalf("port: got %q", s.Port)
	}
	if s.Location != time.UTC {
		t.Fatalf("location: got %v", s.Location)
	}
	if s.DispatcherLimit != 20 {
		t.Fatalf("non-positive limit should fall back to 20, got %d", s.DispatcherLimit)
	}
	if s.DispatcherQueue != 200 {
		t.Fatalf("negative queue should fall back to 200, got %d", s.DispatcherQueue)
	}
	if s.BotURL != "http://bot.local" {
		t.Fatalf("bot url should be trimmed, got %q", s.BotURL)
	}
}

func TestLoadSettingsRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	if _, err := LoadSettings(); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestFeatureFlags(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want func() bool
		exp  bool
	}{
		{"dump off by default", map[string]string{"MESSAGE_DUMP_ENABLED": ""}, MessageDumpEnabled, false},
		{"dump yes", map[string]string{"MESSAGE_DUMP_ENABLED": "yes"}, MessageDumpEnabled, true},
		{"serial follows dump", map[string]string{"MESSAGE_DUMP_ENABLED": "1", "SERIAL_TRACKING_ENABLED": ""}, SerialTrackingEnabled, true},
		{"serial explicit off", map[string]string{"MESSAGE_DUMP_ENABLED": "1", "SERIAL_TRACKING_ENABLED": "false"}, SerialTrackingEnabled, false},
		{"compile on by default", map[string]string{"REPORT_COMPILE_ENABLED": ""}, ReportCompileEnabled, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := tc.want(); got != tc.exp {
				t.Fatalf("got %v want %v", got, tc.exp)
			}
		})
	}
}

func TestExtractionMode(t *testing.T) {
	for in, want := range map[string]string{
		"":          ExtractionModeAuto,
		"auto":      ExtractionModeAuto,
		"demo":      ExtractionModeAnnotated,
		"ANNOTATED": ExtractionModeAnnotated,
		"bogus":     ExtractionModeAuto,
	} {
		t.Setenv("EXTRACTION_MODE", in)
		if got := ExtractionMode(); got != want {
			t.Fatalf("EXTRACTION_MODE=%q: got %q want %q", in, got, want)
		}
	}
}

func TestDatabaseDSNUsesUnixSocketForCloudSQL(t *testing.T) {
	t.Setenv("DB_USER", "agro")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "agromate")
	t.Setenv("DB_HOST", "/cloudsql/proj:region:inst")

	dsn := DatabaseDSN()
	want := "agro:pw@unix(/cloudsql/proj:region:inst)/agromate"
	if len(dsn) < len(want) || dsn[:len(want)] != want {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
