package charts

import (
	"strings"

	"github.com/spaolacci/murmur3"
)

// ChartSpec describes one chart to render: the type, the axis columns,
// and the theme. Two specs that normalize to the same key are the same
// chart as far as the library is concerned.
type ChartSpec struct {
	Type  ChartType
	X     string
	Y     string // empty for single-axis and dataset-level charts
	Theme Theme
}

// Normalize returns a copy with the identity fields trimmed and lowercased.
// Key equality is always decided on normalized fields.
func (s ChartSpec) Normalize() ChartSpec {
	return ChartSpec{
		Type:  ChartType(strings.ToLower(strings.TrimSpace(string(s.Type)))),
		X:     strings.ToLower(strings.TrimSpace(s.X)),
		Y:     strings.ToLower(strings.TrimSpace(s.Y)),
		Theme: Theme(strings.ToLower(strings.TrimSpace(string(s.Theme)))),
	}
}

// Key returns the normalized identity of the spec within a session:
// chart type, x column, y column, and theme, joined with "|".
func (s ChartSpec) Key() string {
	n := s.Normalize()
	return string(n.Type) + "|" + n.X + "|" + n.Y + "|" + string(n.Theme)
}

// KeyHash returns a 64-bit murmur3 hash of the spec key. The catalog
// indexes this value so key lookups avoid a long-text index; equality
// is still decided on the full key.
func (s ChartSpec) KeyHash() uint64 {
	return murmur3.Sum64([]byte(s.Key()))
}

// Title returns the display title for a chart built from this spec.
func (s ChartSpec) Title() string {
	if s.Y != "" {
		return s.Type.Title() + ": " + s.X + " vs " + s.Y
	}
	if s.X != "" {
		return s.Type.Title() + ": " + s.X
	}
	return s.Type.Title()
}
