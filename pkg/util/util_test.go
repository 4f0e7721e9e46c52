package util

import (
	"strings"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "PT1H", want: time.Hour},
		{in: "PT1H30M", want: 90 * time.Minute},
		{in: "pt45m", want: 45 * time.Minute},
		{in: "P1D", want: 24 * time.Hour},
		{in: "P1DT2H", want: 26 * time.Hour},
		{in: "P1W", want: 7 * 24 * time.Hour},
		{in: "PT90S", want: 90 * time.Second},
		{in: "1h", wantErr: true},
		{in: "PT", wantErr: true},
		{in: "P", wantErr: true},
		{in: "PT0M", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDuration(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDuration(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatUntil(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{28 * time.Hour, "1d 4h"},
		{3*time.Hour + 20*time.Minute, "3h 20m"},
		{45 * time.Minute, "45m"},
		{0, "0m"},
		{-time.Minute, "overdue"},
	}
	for _, tt := range tests {
		if got := FormatUntil(tt.in); got != tt.want {
			t.Errorf("FormatUntil(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("expected untouched string, got %q", got)
	}
	got := Truncate(strings.Repeat("a", 30), 10)
	if !strings.HasPrefix(got, strings.Repeat("a", 10)+"...") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "20 chars") {
		t.Errorf("expected dropped count in %q", got)
	}
}
