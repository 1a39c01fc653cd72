// Package video streams a video file to the TFT panel. ffmpeg decodes and
// rescales the file to raw RGB24 frames on a pipe; each frame is converted to
// RGB565 and written to the display at the target frame rate.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"rockkit/internal/rgb565"
)

const DefaultFPS = 25

// FrameWriter is the display side of playback, satisfied by *st7789.Dev.
type FrameWriter interface {
	Bounds() image.Rectangle
	WriteFrame(r image.Rectangle, pix []byte) error
}

type Player struct {
	dst FrameWriter
	fps int

	// stubbed in tests
	now   func() time.Time
	sleep func(time.Duration)
}

func NewPlayer(dst FrameWriter, fps int) *Player {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Player{
		dst:   dst,
		fps:   fps,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Play decodes path with ffmpeg and shows it full screen until the stream
// ends or ctx is cancelled. ffmpeg is terminated and reaped on the way out.
func (p *Player) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("video: %w", err)
	}

	b := p.dst.Bounds()
	w, h := b.Dx(), b.Dy()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "warning",
		"-nostdin",
		"-i", path,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d:flags=lanczos", p.fps, w, h),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-")
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("video: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("video: unable to start ffmpeg: %w", err)
	}
	defer cmd.Wait()

	logrus.Infof("Playing %s at %d fps (%dx%d)", path, p.fps, w, h)

	err = p.loop(ctx, stdout, b)
	if err != nil && ctx.Err() != nil {
		// Cancelled playback is a normal stop.
		err = nil
	}
	return err
}

func (p *Player) loop(ctx context.Context, frames io.Reader, b image.Rectangle) error {
	w, h := b.Dx(), b.Dy()
	frameSize := w * h * 3
	raw := make([]byte, frameSize)
	interval := time.Second / time.Duration(p.fps)

	frameCount := 0
	start := p.now()
	lastReport := start

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frameStart := p.now()

		if _, err := io.ReadFull(frames, raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				logrus.Infof("End of stream after %d frames", frameCount)
				return nil
			}
			return fmt.Errorf("video: reading frame: %w", err)
		}

		img := rgb565.FromRGB24(raw, w, h)
		if err := p.dst.WriteFrame(b, img.Pix); err != nil {
			return err
		}
		frameCount++

		if remaining := interval - p.now().Sub(frameStart); remaining > 0 {
			p.sleep(remaining)
		}

		if now := p.now(); now.Sub(lastReport) >= 2*time.Second {
			elapsed := now.Sub(start).Seconds()
			logrus.Infof("Frames: %d, Time: %.2fs, FPS: %.2f",
				frameCount, elapsed, float64(frameCount)/elapsed)
			lastReport = now
		}
	}
}
