package overlays

import (
	"sort"
	"sync"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

// Preset names shipped with the editor
const (
	PresetTitle     = "title"
	PresetSubtitle  = "subtitle"
	PresetCaption   = "caption"
	PresetWatermark = "watermark"
	PresetModern    = "modern"
	PresetRetro     = "retro"
)

// Registry manages named text style presets
type Registry struct {
	mu       sync.RWMutex
	presets  map[string]timeline.TextStyle
	fallback string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		presets:  make(map[string]timeline.TextStyle),
		fallback: PresetSubtitle,
	}
}

// DefaultRegistry returns a registry holding the built-in presets
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(PresetTitle, timeline.TextStyle{
		FontSize:    72,
		Color:       "#ffffff",
		Background:  "rgba(0,0,0,0.7)",
		Padding:     30,
		ShadowColor: "rgba(0,0,0,0.8)",
		ShadowDX:    3,
		ShadowDY:    3,
	})
	r.Register(PresetSubtitle, timeline.TextStyle{
		FontSize:    48,
		Color:       "#ffffff",
		Background:  "rgba(0,0,0,0.5)",
		Padding:     20,
		Position:    timeline.PositionBottom,
		ShadowColor: "rgba(0,0,0,0.6)",
		ShadowDX:    2,
		ShadowDY:    2,
	})
	r.Register(PresetCaption, timeline.TextStyle{
		FontSize:    32,
		Color:       "#ffffff",
		Background:  "rgba(0,0,0,0.6)",
		Padding:     15,
		Position:    timeline.PositionBottom,
		ShadowColor: "rgba(0,0,0,0.5)",
		ShadowDX:    1,
		ShadowDY:    1,
	})
	r.Register(PresetWatermark, timeline.TextStyle{
		FontSize:   24,
		Color:      "rgba(255,255,255,0.7)",
		Background: "transparent",
		Position:   timeline.PositionBottomRight,
	})
	r.Register(PresetModern, timeline.TextStyle{
		FontSize:    56,
		Color:       "#ffffff",
		Background:  "rgba(0,123,255,0.8)",
		Padding:     25,
		ShadowColor: "rgba(0,123,255,0.4)",
		ShadowDY:    4,
	})
	r.Register(PresetRetro, timeline.TextStyle{
		FontSize:    64,
		Color:       "#00ff00",
		Background:  "rgba(0,0,0,0.9)",
		Padding:     20,
		ShadowColor: "rgba(0,255,0,0.5)",
	})
	return r
}

// Register adds or replaces a preset
func (r *Registry) Register(name string, style timeline.TextStyle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[name] = style
}

// Get retrieves a preset by name
func (r *Registry) Get(name string) (timeline.TextStyle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	style, ok := r.presets[name]
	return style, ok
}

// Style returns the named preset, or the subtitle preset for unknown names
func (r *Registry) Style(name string) timeline.TextStyle {
	if style, ok := r.Get(name); ok {
		return style
	}
	style, _ := r.Get(r.fallback)
	return style
}

// List returns all preset names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge fills the zero fields of style from base
func Merge(style, base timeline.TextStyle) timeline.TextStyle {
	if style.FontSize == 0 {
		style.FontSize = base.FontSize
	}
	if style.Color == "" {
		style.Color = base.Color
	}
	if style.Background == "" {
		style.Background = base.Background
	}
	if style.Padding == 0 {
		style.Padding = base.Padding
	}
	if style.Position == "" {
		style.Position = base.Position
		style.X, style.Y = base.X, base.Y
	}
	if style.Align == "" {
		style.Align = base.Align
	}
	if style.LineHeight == 0 {
		style.LineHeight = base.LineHeight
	}
	if style.MaxWidth == 0 {
		style.MaxWidth = base.MaxWidth
	}
	if style.ShadowColor == "" {
		style.ShadowColor = base.ShadowColor
		style.ShadowDX, style.ShadowDY = base.ShadowDX, base.ShadowDY
	}
	return style
}
