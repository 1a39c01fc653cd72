package face

import (
	"image"
	"testing"
	"time"

	"rockkit/internal/render"
	"rockkit/internal/sysmon"
)

var panel = image.Rect(0, 0, 128, 64)

func litPixels(img *image.RGBA) int {
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return n
}

func TestClockDrawsDigits(t *testing.T) {
	f, _ := render.LoadFace("", 0)
	now := time.Date(2026, 8, 26, 12, 34, 56, 0, time.UTC)
	img := Clock(panel, f, now)
	if litPixels(img) == 0 {
		t.Error("clock frame is blank")
	}
}

func TestClearIsBlank(t *testing.T) {
	if litPixels(Clear(panel)) != 0 {
		t.Error("clear frame has lit pixels")
	}
}

func TestMonitorDrawsStats(t *testing.T) {
	f, _ := render.LoadFace("", 0)
	img := Monitor(panel, f, sysmon.Stats{
		Hostname:   "rock5c",
		IP:         "192.168.1.20",
		Load1:      0.42,
		MemUsedMB:  812,
		MemTotalMB: 3827,
		Uptime:     3 * time.Hour,
		CPUTempC:   47.3,
	})
	if litPixels(img) == 0 {
		t.Error("monitor frame is blank")
	}
}

func TestMarqueeStaticWhenNarrow(t *testing.T) {
	f, _ := render.LoadFace("", 0)
	a := Marquee(panel, f, "hi", 0)
	b := Marquee(panel, f, "hi", 17)
	if litPixels(a) == 0 {
		t.Fatal("marquee frame is blank")
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatal("narrow text should not scroll")
		}
	}
}

func TestMarqueeMovesWhenWide(t *testing.T) {
	f, _ := render.LoadFace("", 0)
	long := "this title is far too wide for a 128 pixel panel"
	a := Marquee(panel, f, long, 0)
	b := Marquee(panel, f, long, 10)
	same := true
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("wide text did not move between ticks")
	}
}

func TestVScrollCycles(t *testing.T) {
	f, _ := render.LoadFace("", 0)
	s := "line one line two line three line four line five"
	lines := wrapToWidth(f, s, panel.Dx())
	period := len(lines)*render.LineHeight(f) + panel.Dy()

	a := VScroll(panel, f, s, 3)
	b := VScroll(panel, f, s, 3+period)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatal("scroll did not repeat after one full period")
		}
	}

	// At tick 0 the text is still below the panel.
	if litPixels(VScroll(panel, f, s, 0)) != 0 {
		t.Error("frame at tick 0 should be blank")
	}
}

func TestHeartBeats(t *testing.T) {
	big := Heart(panel, 0)
	small := Heart(panel, 1)
	if litPixels(big) == 0 {
		t.Fatal("heart frame is blank")
	}
	if litPixels(big) <= litPixels(small) {
		t.Error("even tick should draw the larger heart")
	}
	// Symmetric about the vertical center line x=64.
	for y := 0; y < panel.Dy(); y++ {
		for x := 1; x < 64; x++ {
			l := big.Pix[big.PixOffset(x, y)]
			r := big.Pix[big.PixOffset(128-x, y)]
			if l != r {
				t.Fatalf("asymmetry at x=%d y=%d", x, y)
			}
		}
	}
}

func lit(img *image.RGBA, x, y int) bool {
	return img.Pix[img.PixOffset(x, y)] != 0
}

func TestPacmanEatsDots(t *testing.T) {
	// At tick 0 the muncher is still off-screen left (center x = -32 on a
	// 128x64 panel) and the whole dot row at x = 16, 48, 80, 112 is drawn.
	start := Pacman(panel, 0)
	if !lit(start, 16, 32) || !lit(start, 112, 32) {
		t.Fatal("dot row missing before the muncher enters")
	}

	// At tick 100 the center is at x = 68: the first dots have been eaten,
	// the one ahead at x = 112 has not.
	mid := Pacman(panel, 100)
	if lit(mid, 16, 32) {
		t.Error("passed dot at x=16 still drawn")
	}
	if !lit(mid, 112, 32) {
		t.Error("dot ahead at x=112 already gone")
	}
}

func TestPacmanMouthSnaps(t *testing.T) {
	// Even tick 100 puts the center at x = 68 with the mouth open: the
	// wedge towards the right edge is carved out of the disc.
	open := Pacman(panel, 100)
	if lit(open, 83, 32) {
		t.Error("open mouth leaves the wedge filled")
	}
	if !lit(open, 68, 20) {
		t.Error("disc body missing above the mouth")
	}

	// Odd tick 101 (center x = 69) closes the mouth: the same spot just
	// inside the disc edge is filled again.
	closed := Pacman(panel, 101)
	if !lit(closed, 84, 32) {
		t.Error("closed mouth still carved")
	}
}

func TestRadioTitlePlaceholder(t *testing.T) {
	f, _ := render.LoadFace("", 0)
	img := RadioTitle(panel, f, "SomaFM", "", 0)
	if litPixels(img) == 0 {
		t.Error("radio frame is blank")
	}
}
