package st7789

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

// recPin records every level written to it, on top of gpiotest.Pin.
type recPin struct {
	gpiotest.Pin
	levels []gpio.Level
}

func (p *recPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return p.Pin.Out(l)
}

func newTestDev(t *testing.T, opts *Opts) (*Dev, *spitest.Record, *recPin, *recPin) {
	t.Helper()
	rec := &spitest.Record{}
	dc := &recPin{Pin: gpiotest.Pin{N: "DC", Num: 140}}
	rst := &recPin{Pin: gpiotest.Pin{N: "RST", Num: 37}}
	d, err := New(rec, dc, rst, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.sleep = func(time.Duration) {}
	return d, rec, dc, rst
}

func TestResetPulse(t *testing.T) {
	d, _, _, rst := newTestDev(t, nil)
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	want := []gpio.Level{gpio.High, gpio.Low, gpio.High}
	if len(rst.levels) != len(want) {
		t.Fatalf("RST transitions = %v, want %v", rst.levels, want)
	}
	for i, l := range want {
		if rst.levels[i] != l {
			t.Errorf("RST transition %d = %v, want %v", i, rst.levels[i], l)
		}
	}
}

func TestInitGoldenSequence(t *testing.T) {
	d, rec, dc, _ := newTestDev(t, nil)
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	golden := [][]byte{
		{0x01}, // SWRESET
		{0x11}, // SLPOUT
		{0x36}, // MADCTL
		{0x00}, // portrait
		{0x3A}, // COLMOD
		{0x55}, // RGB565
		{0x21}, // INVON
		{0x13}, // NORON
		{0x29}, // DISPON
	}
	if len(rec.Ops) != len(golden) {
		t.Fatalf("got %d SPI transfers, want %d", len(rec.Ops), len(golden))
	}
	for i, w := range golden {
		got := rec.Ops[i].W
		if len(got) != len(w) || got[0] != w[0] {
			t.Errorf("transfer %d = %#v, want %#v", i, got, w)
		}
	}

	// One DC write per transfer: low for command bytes, high for parameters.
	wantDC := []gpio.Level{
		gpio.Low, gpio.Low, gpio.Low, gpio.High, gpio.Low,
		gpio.High, gpio.Low, gpio.Low, gpio.Low,
	}
	if len(dc.levels) != len(wantDC) {
		t.Fatalf("DC transitions = %d, want %d", len(dc.levels), len(wantDC))
	}
	for i, l := range wantDC {
		if dc.levels[i] != l {
			t.Errorf("DC transition %d = %v, want %v", i, dc.levels[i], l)
		}
	}
}

func TestInitRotation90(t *testing.T) {
	d, rec, _, _ := newTestDev(t, &Opts{W: 240, H: 320, Rotation: Rotation90})
	if got, want := d.Bounds(), image.Rect(0, 0, 320, 240); got != want {
		t.Fatalf("Bounds() = %v, want %v", got, want)
	}
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// Third transfer is the MADCTL parameter.
	if got := rec.Ops[3].W[0]; got != 0x60 {
		t.Errorf("MADCTL = %#02x, want 0x60", got)
	}
}

// pixelBytes sums the data transferred after the RAMWR command, checking the
// window-address preamble along the way.
func pixelBytes(t *testing.T, ops []conntest.IO, r image.Rectangle) int {
	t.Helper()
	if len(ops) < 5 {
		t.Fatalf("got %d transfers, want at least 5", len(ops))
	}
	if ops[0].W[0] != 0x2A {
		t.Fatalf("transfer 0 = %#02x, want CASET", ops[0].W[0])
	}
	x0, x1 := r.Min.X, r.Max.X-1
	wantCols := []byte{byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)}
	for i, b := range wantCols {
		if ops[1].W[i] != b {
			t.Errorf("CASET params = %#v, want %#v", ops[1].W, wantCols)
			break
		}
	}
	if ops[2].W[0] != 0x2B {
		t.Fatalf("transfer 2 = %#02x, want RASET", ops[2].W[0])
	}
	if ops[4].W[0] != 0x2C {
		t.Fatalf("transfer 4 = %#02x, want RAMWR", ops[4].W[0])
	}
	n := 0
	for _, op := range ops[5:] {
		if len(op.W) > maxTxSize {
			t.Errorf("chunk of %d bytes exceeds transfer limit %d", len(op.W), maxTxSize)
		}
		n += len(op.W)
	}
	return n
}

func TestWriteFrameExactByteCount(t *testing.T) {
	windows := []image.Rectangle{
		image.Rect(0, 0, 240, 320),
		image.Rect(0, 0, 1, 1),
		image.Rect(10, 20, 30, 25),
		image.Rect(239, 319, 240, 320),
		image.Rect(0, 100, 240, 101),
	}
	for _, r := range windows {
		d, rec, _, _ := newTestDev(t, nil)
		if err := d.Init(); err != nil {
			t.Fatalf("Init: %v", err)
		}
		rec.Ops = nil
		pix := make([]byte, r.Dx()*r.Dy()*2)
		if err := d.WriteFrame(r, pix); err != nil {
			t.Fatalf("WriteFrame(%v): %v", r, err)
		}
		if got, want := pixelBytes(t, rec.Ops, r), len(pix); got != want {
			t.Errorf("window %v: %d pixel bytes on the wire, want %d", r, got, want)
		}
	}
}

func TestFullWhiteFrame(t *testing.T) {
	d, rec, _, _ := newTestDev(t, nil)
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	rec.Ops = nil
	white := make([]byte, 240*320*2)
	for i := range white {
		white[i] = 0xFF
	}
	if err := d.WriteFrame(d.Bounds(), white); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if got := pixelBytes(t, rec.Ops, d.Bounds()); got != 240*320*2 {
		t.Errorf("%d pixel bytes on the wire, want %d", got, 240*320*2)
	}
}

func TestWriteFrameBeforeInit(t *testing.T) {
	d, rec, _, _ := newTestDev(t, nil)
	err := d.WriteFrame(d.Bounds(), make([]byte, 240*320*2))
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("WriteFrame before Init = %v, want ErrNotInitialized", err)
	}
	if len(rec.Ops) != 0 {
		t.Errorf("%d SPI transfers before init, want none", len(rec.Ops))
	}
}

func TestWriteFrameBufferSize(t *testing.T) {
	d, _, _, _ := newTestDev(t, nil)
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r := image.Rect(0, 0, 10, 10)
	if err := d.WriteFrame(r, make([]byte, 10*10*2-1)); err == nil {
		t.Error("short buffer accepted")
	}
	if err := d.WriteFrame(r, make([]byte, 10*10*2+2)); err == nil {
		t.Error("oversized buffer accepted")
	}
}

func TestSetWindowValidation(t *testing.T) {
	d, _, _, _ := newTestDev(t, nil)
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, 241, 320),
		image.Rect(-1, 0, 10, 10),
		image.Rect(5, 5, 5, 5),
		image.Rect(0, 0, 240, 321),
	} {
		if err := d.SetWindow(r); err == nil {
			t.Errorf("SetWindow(%v) accepted", r)
		}
	}
}

type countingPort struct {
	spitest.Record
	closes int
}

func (p *countingPort) Close() error {
	p.closes++
	return nil
}

func TestCloseIdempotent(t *testing.T) {
	port := &countingPort{}
	dc := &gpiotest.Pin{N: "DC"}
	rst := &gpiotest.Pin{N: "RST"}
	d, err := New(port, dc, rst, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.port = port
	if err := d.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if port.closes != 1 {
		t.Errorf("port closed %d times, want 1", port.closes)
	}
}

func TestOpenResolvesDefaultPins(t *testing.T) {
	// The control lines carry the global Linux numbers of gpiochip4 lines
	// 12 and 5. With both registered, Open must get past pin resolution;
	// the only acceptable failure is the nonexistent SPI port.
	for _, n := range []int{DefaultDCPin, DefaultRSTPin} {
		p := &gpiotest.Pin{N: fmt.Sprintf("GPIO%d", n), Num: n}
		if err := gpioreg.Register(p); err != nil {
			t.Skipf("pin %s already registered: %v", p.N, err)
		}
	}
	_, err := Open(OpenOpts{
		SPIPort: "spi-port-does-not-exist",
		DCPin:   DefaultDCPin,
		RSTPin:  DefaultRSTPin,
	})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Open = %v, want ErrDeviceUnavailable", err)
	}
	if strings.Contains(err.Error(), "DC") || strings.Contains(err.Error(), "RST") {
		t.Fatalf("control line failed to resolve: %v", err)
	}
}

func TestOpenMissingGPIOChip(t *testing.T) {
	_, err := Open(OpenOpts{
		GPIOChipDC:  "/dev/gpiochip-does-not-exist",
		GPIOChipRST: "/dev/gpiochip-does-not-exist",
		DCPin:       140,
		RSTPin:      37,
	})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Open = %v, want ErrDeviceUnavailable", err)
	}
}

// failConn fails every transfer.
type failConn struct{}

func (f *failConn) String() string                 { return "failConn" }
func (f *failConn) Tx(w, r []byte) error           { return errors.New("broken wire") }
func (f *failConn) Duplex() conn.Duplex            { return conn.Full }
func (f *failConn) TxPackets(p []spi.Packet) error { return errors.New("broken wire") }

type failPort struct{}

func (f *failPort) String() string { return "failPort" }
func (f *failPort) Connect(freq physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	return &failConn{}, nil
}

func TestTransferFailureIsFatal(t *testing.T) {
	dc := &gpiotest.Pin{N: "DC"}
	rst := &gpiotest.Pin{N: "RST"}
	d, err := New(&failPort{}, dc, rst, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.sleep = func(time.Duration) {}
	if err := d.Init(); !errors.Is(err, ErrTransfer) {
		t.Fatalf("Init on broken wire = %v, want ErrTransfer", err)
	}
	d.initialized = true
	err = d.WriteFrame(image.Rect(0, 0, 2, 2), make([]byte, 8))
	if !errors.Is(err, ErrTransfer) {
		t.Fatalf("WriteFrame on broken wire = %v, want ErrTransfer", err)
	}
}
