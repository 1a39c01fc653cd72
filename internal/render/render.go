// Package render draws text into image buffers for the OLED and TFT tools.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"

	"github.com/hajimehoshi/bitmapfont/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// LoadFace loads a TrueType/OpenType face from path at the given point size.
// An empty path selects the built-in bitmap face, which needs no file on the
// target system.
func LoadFace(path string, points float64) (font.Face, error) {
	if path == "" {
		return bitmapfont.Face, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: font %s: %w", path, err)
	}
	f, err := opentype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("render: font %s: %w", path, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    points,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: font %s: %w", path, err)
	}
	return face, nil
}

// Label draws label with its baseline at (x, y).
func Label(dst draw.Image, face font.Face, col color.Color, x, y int, label string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

// CenteredLabel draws label horizontally centered, baseline at y.
func CenteredLabel(dst draw.Image, face font.Face, col color.Color, y int, label string) {
	x := (dst.Bounds().Dx() - TextWidth(face, label)) / 2
	Label(dst, face, col, x, y, label)
}

// TextWidth returns the advance width of s in pixels.
func TextWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// LineHeight returns the face's line height in pixels.
func LineHeight(face font.Face) int {
	return face.Metrics().Height.Ceil()
}

// Ascent returns the face's ascent in pixels, i.e. the baseline offset for
// text drawn flush with the top edge.
func Ascent(face font.Face) int {
	return face.Metrics().Ascent.Ceil()
}

// Wrap splits s into lines of at most limit characters, breaking at spaces.
// Words longer than limit are split mid-word.
func Wrap(s string, limit int) []string {
	if limit <= 0 {
		return []string{s}
	}
	var lines []string
	line := ""
	for _, word := range strings.Fields(s) {
		for len(word) > limit {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			lines = append(lines, word[:limit])
			word = word[limit:]
		}
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= limit:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// MarqueeX returns the two x offsets for a horizontally scrolling label at
// the given tick. The label is drawn twice, gap pixels apart, so the scroll
// wraps seamlessly once the first copy has left the panel.
func MarqueeX(tick, textWidth, gap int) (int, int) {
	period := textWidth + gap
	if period <= 0 {
		return 0, 0
	}
	delta := tick % period
	return -delta, period - delta
}
