package util

import (
	"math"
	"testing"
	"time"
)

func TestFormatClock(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{5.9, "00:05"},
		{65, "01:05"},
		{3725, "01:02:05"},
		{-1, "00:00"},
		{math.NaN(), "00:00"},
	}
	for _, c := range cases {
		if got := FormatClock(c.in); got != c.want {
			t.Errorf("FormatClock(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := FormatSeconds(3661.5); got != "01:01:01.500" {
		t.Errorf("expected 01:01:01.500, got %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"45.5", 45.5},
		{"1:05", 65},
		{"1:00:02.5", 3602.5},
		{"2.5s", 2.5},
		{"1m30s", 90},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) failed: %v", c.in, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "abc", "1:2:3:4", "-5"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := ParseFrameRate("30/1"); got != 30 {
		t.Errorf("expected 30, got %v", got)
	}
	if got := ParseFrameRate("30/0"); got != 0 {
		t.Errorf("expected 0 for zero denominator, got %v", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Errorf("expected 10, got %v", got)
	}
	if got := Clamp(5, 0, -3); got != 0 {
		t.Errorf("inverted range should clamp to lower bound, got %v", got)
	}
}

func TestGenerateFilename(t *testing.T) {
	now := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	if got := GenerateFilename("", "video-edit", "mp4", now); got != "video-edit-20240309-070501.mp4" {
		t.Errorf("unexpected filename %q", got)
	}
}
