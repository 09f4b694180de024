package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// ParseColor reads "#rrggbb" or "#rrggbbaa" into normalized RGBA.
func ParseColor(s string) (mgl32.Vec4, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if len(hex) == 6 {
		hex += "ff"
	}
	if !ok || len(hex) != 8 {
		return mgl32.Vec4{}, fmt.Errorf("color %q: want #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return mgl32.Vec4{}, fmt.Errorf("color %q: %w", s, err)
	}
	return mgl32.Vec4{
		float32(v>>24&0xff) / 255,
		float32(v>>16&0xff) / 255,
		float32(v>>8&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}

// FormatColor is the inverse of ParseColor, always with alpha.
func FormatColor(c mgl32.Vec4) string {
	b := func(f float32) uint8 {
		return uint8(mgl32.Clamp(f, 0, 1)*255 + 0.5)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", b(c[0]), b(c[1]), b(c[2]), b(c[3]))
}
