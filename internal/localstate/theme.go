package localstate

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Theme is the persisted site theme. Colors map CSS custom property names
// (without the leading dashes) to values.
type Theme struct {
	Name   string            `json:"name"`
	Colors map[string]string `json:"colors"`
}

// DefaultTheme is applied when no theme has been saved.
var DefaultTheme = Theme{
	Name: "light",
	Colors: map[string]string{
		"primary":    "#3b82f6",
		"secondary":  "#64748b",
		"background": "#ffffff",
		"surface":    "#f8fafc",
		"text":       "#0f172a",
		"accent":     "#f59e0b",
	},
}

// CSS renders the theme as custom property declarations on :root, in key
// order.
func (t Theme) CSS() string {
	var b strings.Builder
	b.WriteString(":root {\n")
	for _, k := range slices.Sorted(maps.Keys(t.Colors)) {
		fmt.Fprintf(&b, "  --color-%s: %s;\n", k, t.Colors[k])
	}
	b.WriteString("}\n")
	return b.String()
}

// SaveTheme stores t as JSON.
func SaveTheme(ctx context.Context, s Store, t Theme) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal theme: %w", err)
	}
	return s.Set(ctx, KeyTheme, string(data))
}

// LoadTheme returns the stored theme, or DefaultTheme when none is stored or
// the stored value cannot be decoded.
func LoadTheme(ctx context.Context, s Store) (Theme, error) {
	v, ok, err := s.Get(ctx, KeyTheme)
	if err != nil {
		return Theme{}, err
	}
	if !ok {
		return DefaultTheme, nil
	}
	var t Theme
	if err := json.Unmarshal([]byte(v), &t); err != nil {
		return DefaultTheme, nil
	}
	return t, nil
}
