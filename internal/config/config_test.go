package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skeet.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Detector != "hybrid" {
		t.Errorf("Detector = %q, want hybrid", cfg.Detector)
	}
	if cfg.Keys.Commit != "1" || cfg.Keys.Interact != "e" {
		t.Errorf("Keys = %+v, want commit 1 / interact e", cfg.Keys)
	}
	if cfg.Dashboard.Port != 8080 || !cfg.Dashboard.Enabled {
		t.Errorf("Dashboard = %+v, want enabled on 8080", cfg.Dashboard)
	}
	if cfg.Capture.Source != "screen" {
		t.Errorf("Capture.Source = %q, want screen", cfg.Capture.Source)
	}
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
detector: color
profile: aggressive
capture:
  source: browser
  url: https://universe.flyff.com/play
  region:
    x: 100
    y: 50
    width: 800
    height: 600
  ignore_zones:
    - {x: 0, y: 0, width: 800, height: 90}
input:
  sink: serial
  serial_port: COM4
  baud_rate: 9600
notify:
  webhook_url: https://discord.com/api/webhooks/1/x
  min_gap_ms: 2000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Detector != "color" || cfg.Profile != "aggressive" {
		t.Errorf("got detector %q profile %q", cfg.Detector, cfg.Profile)
	}
	if got := cfg.Capture.Region.Bounds(); got != image.Rect(100, 50, 900, 650) {
		t.Errorf("Region = %v", got)
	}
	zones := cfg.Capture.IgnoreBounds()
	if len(zones) != 1 || zones[0] != image.Rect(0, 0, 800, 90) {
		t.Errorf("IgnoreBounds = %v", zones)
	}
	if cfg.Input.Sink != "serial" || cfg.Input.SerialPort != "COM4" || cfg.Input.BaudRate != 9600 {
		t.Errorf("Input = %+v", cfg.Input)
	}
	if cfg.Notify.WebhookURL == "" || cfg.Notify.MinGapMs != 2000 {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SKEET_DASHBOARD_PORT", "9091")
	path := writeConfig(t, "log_level: info\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dashboard.Port != 9091 {
		t.Errorf("Dashboard.Port = %d, want env override 9091", cfg.Dashboard.Port)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown source", "capture:\n  source: webcam\n"},
		{"browser without url", "capture:\n  source: browser\n"},
		{"serial without port", "input:\n  sink: serial\n"},
		{"unknown sink", "input:\n  sink: telepathy\n"},
		{"unknown profile", "profile: reckless\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestZeroRegionIsUnset(t *testing.T) {
	var r Rect
	if !r.Bounds().Empty() {
		t.Errorf("zero Rect bounds = %v, want empty", r.Bounds())
	}
}
