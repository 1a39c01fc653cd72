package screen

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestBounds(t *testing.T) {
	s := New("", false)
	if got := s.Bounds(); got != image.Rect(0, 0, 128, 64) {
		t.Fatalf("Bounds() = %v, want (0,0)-(128,64)", got)
	}
}

func TestStartDrawStop(t *testing.T) {
	rec := &i2ctest.Record{}
	s := New("", false)
	s.openBus = func(string) (i2c.BusCloser, error) { return rec, nil }

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	initOps := len(rec.Ops)
	if initOps == 0 {
		t.Fatal("no init commands reached the panel")
	}

	img := image.NewRGBA(s.Bounds())
	for x := 0; x < 128; x++ {
		img.Set(x, 32, color.White)
	}
	s.ShowImage(img)
	s.Stop()

	if len(rec.Ops) <= initOps {
		t.Errorf("ops after ShowImage+Stop = %d, want more than the %d init ops", len(rec.Ops), initOps)
	}
}

func TestStartBusError(t *testing.T) {
	s := New("i2c-nonexistent", false)
	s.openBus = func(string) (i2c.BusCloser, error) { return nil, errors.New("no such bus") }
	if err := s.Start(); err == nil {
		t.Fatal("Start succeeded without a bus")
	}
}
