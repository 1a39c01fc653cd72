// Package face composes the images shown on the OLED panel: clock, system
// monitor, radio title, text pages, scrollers and the animations.
package face

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"

	"rockkit/internal/render"
	"rockkit/internal/sysmon"
)

// Tick is the animation frame interval shared by the scrolling faces.
const Tick = 50 * time.Millisecond

func blank(b image.Rectangle) *image.RGBA {
	return image.NewRGBA(b)
}

// Clear returns an all-black frame, used to wipe the panel on shutdown.
func Clear(b image.Rectangle) *image.RGBA {
	return blank(b)
}

// Clock renders now as HH:MM:SS centered on the panel.
func Clock(b image.Rectangle, f font.Face, now time.Time) *image.RGBA {
	img := blank(b)
	y := (b.Dy()-render.LineHeight(f))/2 + render.Ascent(f)
	render.CenteredLabel(img, f, color.White, y, now.Format("15:04:05"))
	return img
}

// Monitor renders the host dashboard: identity line, load, memory, uptime
// and CPU temperature.
func Monitor(b image.Rectangle, f font.Face, s sysmon.Stats) *image.RGBA {
	img := blank(b)
	lines := []string{
		s.Hostname,
		s.IP,
		fmt.Sprintf("load %.2f  %.1fC", s.Load1, s.CPUTempC),
		fmt.Sprintf("mem %d/%dM", s.MemUsedMB, s.MemTotalMB),
		fmt.Sprintf("up %s", sysmon.FormatUptime(s.Uptime)),
	}
	h := render.LineHeight(f)
	y := render.Ascent(f)
	for _, line := range lines {
		if y > b.Dy() {
			break
		}
		render.Label(img, f, color.White, 0, y, line)
		y += h
	}
	return img
}

// Text renders s wrapped to the panel width, dropping lines that do not fit
// vertically.
func Text(b image.Rectangle, f font.Face, s string) *image.RGBA {
	img := blank(b)
	h := render.LineHeight(f)
	y := render.Ascent(f)
	for _, line := range wrapToWidth(f, s, b.Dx()) {
		if y-render.Ascent(f)+h > b.Dy() {
			break
		}
		render.Label(img, f, color.White, 0, y, line)
		y += h
	}
	return img
}

// Marquee renders one animation frame of s scrolling right to left, vertically
// centered. Text narrower than the panel is drawn static and centered.
func Marquee(b image.Rectangle, f font.Face, s string, tick int) *image.RGBA {
	img := blank(b)
	y := (b.Dy()-render.LineHeight(f))/2 + render.Ascent(f)
	w := render.TextWidth(f, s)
	if w <= b.Dx() {
		render.CenteredLabel(img, f, color.White, y, s)
		return img
	}
	x1, x2 := render.MarqueeX(tick, w, b.Dx()/4)
	render.Label(img, f, color.White, x1, y, s)
	render.Label(img, f, color.White, x2, y, s)
	return img
}

// VScroll renders one frame of s scrolling bottom to top, wrapped to the
// panel width. The text enters from below the panel and the cycle restarts
// once the last line has left the top edge.
func VScroll(b image.Rectangle, f font.Face, s string, tick int) *image.RGBA {
	img := blank(b)
	lines := wrapToWidth(f, s, b.Dx())
	h := render.LineHeight(f)
	total := len(lines) * h
	offset := tick % (total + b.Dy())
	y := b.Dy() - offset + render.Ascent(f)
	for _, line := range lines {
		if y > -h && y < b.Dy()+h {
			render.Label(img, f, color.White, 0, y, line)
		}
		y += h
	}
	return img
}

// RadioTitle renders the station screen: a static header and the current
// track title, scrolling when wider than the panel.
func RadioTitle(b image.Rectangle, f font.Face, station, title string, tick int) *image.RGBA {
	img := blank(b)
	render.CenteredLabel(img, f, color.White, render.Ascent(f), station)

	if title == "" {
		title = "..."
	}
	y := b.Dy() - render.LineHeight(f) + render.Ascent(f)
	w := render.TextWidth(f, title)
	if w <= b.Dx() {
		render.CenteredLabel(img, f, color.White, y, title)
		return img
	}
	x1, x2 := render.MarqueeX(tick, w, b.Dx()/4)
	render.Label(img, f, color.White, x1, y, title)
	render.Label(img, f, color.White, x2, y, title)
	return img
}

// Heart renders the beating heart: two circles and a triangle, alternating
// between two sizes on even and odd ticks.
func Heart(b image.Rectangle, tick int) *image.RGBA {
	img := blank(b)
	size := b.Dy() / 2
	if tick%2 == 1 {
		size -= 2
	}
	cx, cy := b.Dx()/2, b.Dy()/2
	fillCircle(img, cx-size/2, cy, size/2)
	fillCircle(img, cx+size/2, cy, size/2)
	fillTriangle(img, color.White, cx-size, cy, cx+size, cy, cx, cy+size)
	return img
}

// Pacman renders one frame of the dot-eating loop: the muncher crosses the
// panel left to right, mouth snapping shut on odd ticks, clearing the dots
// it has passed. The cycle restarts once it has left the right edge.
func Pacman(b image.Rectangle, tick int) *image.RGBA {
	img := blank(b)
	r := b.Dy() / 4
	period := b.Dx() + 4*r
	cx := tick%period - 2*r
	cy := b.Dy() / 2

	for x := r; x < b.Dx(); x += 2 * r {
		if x > cx+r {
			fillCircle(img, x, cy, 2)
		}
	}

	fillCircle(img, cx, cy, r)
	if tick%2 == 0 {
		// Open mouth: a wedge carved towards the direction of travel.
		fillTriangle(img, color.Black, cx, cy, cx+r+1, cy-r, cx+r+1, cy+r)
	}
	return img
}

// wrapToWidth wraps s by estimating characters per line from the face's
// digit advance.
func wrapToWidth(f font.Face, s string, width int) []string {
	cw := render.TextWidth(f, "0")
	if cw <= 0 {
		cw = 6
	}
	return render.Wrap(s, width/cw)
}

func fillCircle(img *image.RGBA, cx, cy, r int) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.Set(cx+x, cy+y, color.White)
			}
		}
	}
}

// fillTriangle rasterizes the triangle (x0,y0)-(x1,y1)-(x2,y2) by half-plane
// tests against its three edges.
func fillTriangle(img *image.RGBA, col color.Color, x0, y0, x1, y1, x2, y2 int) {
	minX, maxX := min3(x0, x1, x2), max3(x0, x1, x2)
	minY, maxY := min3(y0, y1, y2), max3(y0, y1, y2)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			d0 := edge(x0, y0, x1, y1, x, y)
			d1 := edge(x1, y1, x2, y2, x, y)
			d2 := edge(x2, y2, x0, y0, x, y)
			if (d0 >= 0 && d1 >= 0 && d2 >= 0) || (d0 <= 0 && d1 <= 0 && d2 <= 0) {
				img.Set(x, y, col)
			}
		}
	}
}

func edge(ax, ay, bx, by, px, py int) int {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}
