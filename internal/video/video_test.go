package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"
	"time"
)

type fakeDisplay struct {
	bounds image.Rectangle
	frames [][]byte
	err    error
}

func (f *fakeDisplay) Bounds() image.Rectangle { return f.bounds }

func (f *fakeDisplay) WriteFrame(r image.Rectangle, pix []byte) error {
	if f.err != nil {
		return f.err
	}
	cp := make([]byte, len(pix))
	copy(cp, pix)
	f.frames = append(f.frames, cp)
	return nil
}

// fakeClock advances only when the player sleeps.
type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}

func newTestPlayer(dst FrameWriter, fps int) (*Player, *fakeClock) {
	p := NewPlayer(dst, fps)
	clock := &fakeClock{t: time.Unix(0, 0)}
	p.now = clock.now
	p.sleep = clock.sleep
	return p, clock
}

func rgb24Frames(w, h, n int) []byte {
	frame := make([]byte, w*h*3)
	for i := range frame {
		frame[i] = byte(i)
	}
	return bytes.Repeat(frame, n)
}

func TestLoopPlaysAllFrames(t *testing.T) {
	d := &fakeDisplay{bounds: image.Rect(0, 0, 4, 2)}
	p, clock := newTestPlayer(d, 25)

	err := p.loop(context.Background(), bytes.NewReader(rgb24Frames(4, 2, 3)), d.bounds)
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if len(d.frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(d.frames))
	}
	for i, f := range d.frames {
		if len(f) != 4*2*2 {
			t.Errorf("frame %d: %d bytes, want %d", i, len(f), 4*2*2)
		}
	}
	// One pacing sleep per frame since the fake clock makes processing
	// instantaneous.
	if len(clock.slept) != 3 {
		t.Errorf("got %d sleeps, want 3", len(clock.slept))
	}
	for _, s := range clock.slept {
		if s != time.Second/25 {
			t.Errorf("sleep = %v, want %v", s, time.Second/25)
		}
	}
}

func TestLoopStopsOnShortFrame(t *testing.T) {
	d := &fakeDisplay{bounds: image.Rect(0, 0, 4, 2)}
	p, _ := newTestPlayer(d, 25)

	data := rgb24Frames(4, 2, 2)
	data = append(data, 0x01, 0x02) // trailing partial frame
	if err := p.loop(context.Background(), bytes.NewReader(data), d.bounds); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if len(d.frames) != 2 {
		t.Errorf("got %d frames, want 2", len(d.frames))
	}
}

func TestLoopPropagatesDisplayError(t *testing.T) {
	wantErr := errors.New("spi transfer failed")
	d := &fakeDisplay{bounds: image.Rect(0, 0, 4, 2), err: wantErr}
	p, _ := newTestPlayer(d, 25)

	err := p.loop(context.Background(), bytes.NewReader(rgb24Frames(4, 2, 1)), d.bounds)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestLoopHonorsCancel(t *testing.T) {
	d := &fakeDisplay{bounds: image.Rect(0, 0, 4, 2)}
	p, _ := newTestPlayer(d, 25)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.loop(ctx, bytes.NewReader(rgb24Frames(4, 2, 5)), d.bounds)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(d.frames) != 0 {
		t.Errorf("wrote %d frames after cancel", len(d.frames))
	}
}

func TestPlayMissingFile(t *testing.T) {
	d := &fakeDisplay{bounds: image.Rect(0, 0, 4, 2)}
	p, _ := newTestPlayer(d, 0)
	if p.fps != DefaultFPS {
		t.Errorf("fps = %d, want default %d", p.fps, DefaultFPS)
	}
	if err := p.Play(context.Background(), "/nonexistent/video.webm"); err == nil {
		t.Error("expected error for missing file")
	}
	if len(d.frames) != 0 {
		t.Error("frames written for missing file")
	}
}
