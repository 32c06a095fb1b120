package editor

import (
	"fmt"
	"strings"

	"github.com/kikiluvv/slopedit/pkg/util"
)

// TextSpec is a text item given as "START,DURATION,TEXT"
type TextSpec struct {
	Start    float64
	Duration float64
	Text     string
}

// MusicSpec is an audio item given as "PATH[,START]"
type MusicSpec struct {
	Path  string
	Start float64
}

// ParseTextSpec parses "START,DURATION,TEXT". Times accept the same forms
// as util.ParseTimestamp; the text may itself contain commas.
func ParseTextSpec(s string) (TextSpec, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return TextSpec{}, fmt.Errorf("text %q: want START,DURATION,TEXT", s)
	}
	start, err := util.ParseTimestamp(parts[0])
	if err != nil {
		return TextSpec{}, fmt.Errorf("text %q: %w", s, err)
	}
	duration, err := util.ParseTimestamp(parts[1])
	if err != nil {
		return TextSpec{}, fmt.Errorf("text %q: %w", s, err)
	}
	if duration <= 0 {
		return TextSpec{}, fmt.Errorf("text %q: duration must be positive", s)
	}
	text := strings.TrimSpace(parts[2])
	if text == "" {
		return TextSpec{}, fmt.Errorf("text %q: empty text", s)
	}
	return TextSpec{Start: start, Duration: duration, Text: text}, nil
}

// ParseMusicSpec parses "PATH[,START]"
func ParseMusicSpec(s string) (MusicSpec, error) {
	path, start, hasStart := strings.Cut(s, ",")
	path = strings.TrimSpace(path)
	if path == "" {
		return MusicSpec{}, fmt.Errorf("music %q: empty path", s)
	}
	spec := MusicSpec{Path: path}
	if hasStart {
		t, err := util.ParseTimestamp(start)
		if err != nil {
			return MusicSpec{}, fmt.Errorf("music %q: %w", s, err)
		}
		spec.Start = t
	}
	return spec, nil
}

// ParseSpecs parses repeated --text and --music flag values
func ParseSpecs(texts, music []string) ([]TextSpec, []MusicSpec, error) {
	var ts []TextSpec
	for _, s := range texts {
		spec, err := ParseTextSpec(s)
		if err != nil {
			return nil, nil, err
		}
		ts = append(ts, spec)
	}
	var ms []MusicSpec
	for _, s := range music {
		spec, err := ParseMusicSpec(s)
		if err != nil {
			return nil, nil, err
		}
		ms = append(ms, spec)
	}
	return ts, ms, nil
}
