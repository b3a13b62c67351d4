package detect

import (
	"image"
	"testing"
)

func TestDetectionCenter(t *testing.T) {
	tests := []struct {
		name string
		box  image.Rectangle
		want image.Point
	}{
		{"square at origin", image.Rect(0, 0, 60, 60), image.Pt(30, 30)},
		{"offset box", image.Rect(400, 300, 460, 360), image.Pt(430, 330)},
		{"wide box", image.Rect(100, 100, 220, 140), image.Pt(160, 120)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Detection{Box: tt.box}
			if got := d.Center(); got != tt.want {
				t.Errorf("Center() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectionMaxDim(t *testing.T) {
	tests := []struct {
		name string
		box  image.Rectangle
		want int
	}{
		{"square", image.Rect(0, 0, 60, 60), 60},
		{"wide", image.Rect(0, 0, 120, 40), 120},
		{"tall", image.Rect(0, 0, 40, 90), 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Detection{Box: tt.box}
			if got := d.MaxDim(); got != tt.want {
				t.Errorf("MaxDim() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDetectionAimPoint(t *testing.T) {
	d := Detection{Box: image.Rect(400, 300, 460, 360)}
	want := image.Pt(415, 330)
	if got := d.AimPoint(); got != want {
		t.Errorf("AimPoint() = %v, want %v", got, want)
	}
}

func TestParseModeRoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeTemplate, ModeMotion, ModeColor, ModeHybrid, ModeModel} {
		got, err := ParseMode(mode.String())
		if err != nil {
			t.Errorf("ParseMode(%q) error: %v", mode.String(), err)
			continue
		}
		if got != mode {
			t.Errorf("ParseMode(%q) = %v, want %v", mode.String(), got, mode)
		}
	}

	if _, err := ParseMode("sonar"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}

func TestAreaConfidence(t *testing.T) {
	tests := []struct {
		name    string
		area    float64
		nominal int
		want    float64
	}{
		{"quarter footprint", 900, 60, 0.25},
		{"full footprint", 3600, 60, 1},
		{"oversized caps at one", 10000, 60, 1},
		{"zero nominal", 900, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := areaConfidence(tt.area, tt.nominal); got != tt.want {
				t.Errorf("areaConfidence(%v, %d) = %v, want %v", tt.area, tt.nominal, got, tt.want)
			}
		})
	}
}

func TestRejectTopBand(t *testing.T) {
	tests := []struct {
		name string
		box  image.Rectangle
		want bool
	}{
		{"inside band", image.Rect(100, 30, 160, 90), true},
		{"straddles boundary from below", image.Rect(100, 89, 160, 150), true},
		{"clear of band", image.Rect(100, 90, 160, 150), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rejectTopBand(tt.box, 90); got != tt.want {
				t.Errorf("rejectTopBand(%v, 90) = %v, want %v", tt.box, got, tt.want)
			}
		})
	}
}

func TestDefaultConfigFilters(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AspectIdle >= cfg.AspectEngaged {
		t.Errorf("idle aspect ceiling %.1f should be stricter than engaged %.1f",
			cfg.AspectIdle, cfg.AspectEngaged)
	}
	if cfg.MinBoxPx <= 0 {
		t.Error("MinBoxPx must be positive to suppress pixel noise")
	}
	if cfg.TrackerMaxFailures <= 0 {
		t.Error("TrackerMaxFailures must bound tracker retries")
	}
}
