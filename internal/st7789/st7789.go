// Package st7789 drives an ST7789V-based TFT panel over SPI plus two GPIO
// lines (data/command select and reset).
//
// The device handle is an explicit struct passed to every operation; nothing
// in this package is process-global. Callers own the frame buffer until a
// write returns, and a failed transfer is fatal to the current frame: there
// is no retry, the panel simply keeps whatever it last latched.
package st7789

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	// ErrDeviceUnavailable reports that the SPI device node or a GPIO chip
	// could not be acquired.
	ErrDeviceUnavailable = errors.New("st7789: device unavailable")
	// ErrTransfer reports a mid-session SPI or GPIO write failure.
	ErrTransfer = errors.New("st7789: transfer failed")
	// ErrNotInitialized reports a pixel write before Reset+Init.
	ErrNotInitialized = errors.New("st7789: panel not initialized")
)

// maxTxSize is the default spidev transfer size limit; larger frames are
// split into chunks of this size.
const maxTxSize = 4096

// Opts configures the panel geometry and bus speed.
type Opts struct {
	// W, H are the panel-native dimensions in pixels.
	W int
	H int
	// Rotation selects the logical orientation. Rotation90/270 exchange the
	// axes, so a 240x320 panel presents as 320x240.
	Rotation Rotation
	// SpeedHz is the SPI clock. Defaults to 40MHz.
	SpeedHz physic.Frequency
}

// DefaultOpts matches the common 2.0" 240x320 module.
var DefaultOpts = Opts{W: 240, H: 320, SpeedHz: 40 * physic.MegaHertz}

// Dev is an open display session: the SPI connection and the two control
// lines. Create one with New or Open, and Close it exactly once per process
// lifetime (extra Closes are no-ops).
type Dev struct {
	c    spi.Conn
	port spi.PortCloser // nil when the port was injected
	dc   gpio.PinOut
	rst  gpio.PinOut

	rect        image.Rectangle
	rotation    Rotation
	initialized bool
	closed      bool

	// sleep is swapped out by tests to skip datasheet delays.
	sleep func(time.Duration)
}

// New connects to a panel on an already-open SPI port. It performs no panel
// I/O: callers must Reset and Init before writing pixels.
func New(p spi.Port, dc, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if opts.W <= 0 || opts.H <= 0 {
		return nil, fmt.Errorf("st7789: invalid dimensions %dx%d", opts.W, opts.H)
	}
	if dc == nil || rst == nil {
		return nil, fmt.Errorf("%w: DC and RST lines are required", ErrDeviceUnavailable)
	}
	speed := opts.SpeedHz
	if speed == 0 {
		speed = DefaultOpts.SpeedHz
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	w, h := opts.W, opts.H
	if opts.Rotation.swapsAxes() {
		w, h = h, w
	}
	return &Dev{
		c:        c,
		dc:       dc,
		rst:      rst,
		rect:     image.Rect(0, 0, w, h),
		rotation: opts.Rotation,
		sleep:    time.Sleep,
	}, nil
}

// Board wiring of the panel control lines: DC on gpiochip4 line 12 (Linux
// number 4*32+12 = 140), RST on gpiochip1 line 5 (Linux number 1*32+5 = 37).
const (
	DefaultGPIOChipDC  = "/dev/gpiochip4"
	DefaultGPIOChipRST = "/dev/gpiochip1"
	DefaultDCPin       = 140
	DefaultRSTPin      = 37
)

// OpenOpts names the hardware to acquire.
type OpenOpts struct {
	// SPIPort is a spireg name such as "SPI0.0" or "/dev/spidev0.0".
	// Empty selects the first available port.
	SPIPort string
	// GPIOChipDC and GPIOChipRST are chip device paths (e.g. /dev/gpiochip4)
	// recorded from the board wiring; they are checked for existence before
	// anything is opened.
	GPIOChipDC  string
	GPIOChipRST string
	// DCPin and RSTPin are global Linux GPIO numbers (chip base plus line
	// offset), resolved as "GPIO<n>" in the periph pin registry.
	DCPin  int
	RSTPin int

	Panel Opts
}

// Open acquires the SPI device and the two GPIO lines. Any acquisition
// failure returns an error wrapping ErrDeviceUnavailable, and in that case no
// SPI transfer has been attempted.
func Open(o OpenOpts) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: host init: %v", ErrDeviceUnavailable, err)
	}
	for _, chip := range []string{o.GPIOChipDC, o.GPIOChipRST} {
		if chip == "" {
			continue
		}
		if _, err := os.Stat(chip); err != nil {
			return nil, fmt.Errorf("%w: gpio chip %s: %v", ErrDeviceUnavailable, chip, err)
		}
	}
	dc := gpioreg.ByName(fmt.Sprintf("GPIO%d", o.DCPin))
	if dc == nil {
		return nil, fmt.Errorf("%w: GPIO%d (DC) not found", ErrDeviceUnavailable, o.DCPin)
	}
	rst := gpioreg.ByName(fmt.Sprintf("GPIO%d", o.RSTPin))
	if rst == nil {
		return nil, fmt.Errorf("%w: GPIO%d (RST) not found", ErrDeviceUnavailable, o.RSTPin)
	}
	// DC starts low (command mode), RST high (not resetting).
	if err := dc.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("%w: DC line: %v", ErrDeviceUnavailable, err)
	}
	if err := rst.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("%w: RST line: %v", ErrDeviceUnavailable, err)
	}
	port, err := spireg.Open(o.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("%w: spi %q: %v", ErrDeviceUnavailable, o.SPIPort, err)
	}
	d, err := New(port, dc, rst, &o.Panel)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	d.port = port
	return d, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("st7789.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

// Bounds returns the logical panel rectangle.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Reset pulses the RST line: assert low for 50ms, release, then wait 150ms
// for the oscillator to stabilise. The panel ignores all commands until this
// has been done once.
func (d *Dev) Reset() error {
	steps := []struct {
		level gpio.Level
		wait  time.Duration
	}{
		{gpio.High, 50 * time.Millisecond},
		{gpio.Low, 50 * time.Millisecond},
		{gpio.High, 150 * time.Millisecond},
	}
	for _, s := range steps {
		if err := d.rst.Out(s.level); err != nil {
			return fmt.Errorf("%w: RST line: %v", ErrTransfer, err)
		}
		d.sleep(s.wait)
	}
	return nil
}

// Init writes the vendor power-up sequence. Must follow Reset.
func (d *Dev) Init() error {
	for _, op := range initSequence(d.rotation.madctl()) {
		if err := d.sendCommand(op.cmd); err != nil {
			return err
		}
		if len(op.params) > 0 {
			if err := d.sendData(op.params); err != nil {
				return err
			}
		}
		if op.delay > 0 {
			d.sleep(op.delay)
		}
	}
	d.initialized = true
	return nil
}

// SetWindow restricts subsequent pixel writes to r and issues RAMWR so pixel
// data can follow. r must be a non-empty rectangle inside Bounds.
func (d *Dev) SetWindow(r image.Rectangle) error {
	if r.Empty() || !r.In(d.rect) {
		return fmt.Errorf("st7789: window %v outside panel %v", r, d.rect)
	}
	x0, x1 := r.Min.X, r.Max.X-1
	y0, y1 := r.Min.Y, r.Max.Y-1
	if err := d.sendCommand(cmdCASET); err != nil {
		return err
	}
	if err := d.sendData([]byte{byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)}); err != nil {
		return err
	}
	if err := d.sendCommand(cmdRASET); err != nil {
		return err
	}
	if err := d.sendData([]byte{byte(y0 >> 8), byte(y0), byte(y1 >> 8), byte(y1)}); err != nil {
		return err
	}
	return d.sendCommand(cmdRAMWR)
}

// WriteFrame streams pix, a row-major top-left RGB565 big-endian buffer of
// exactly r.Dx()*r.Dy()*2 bytes, into the window r. There is no tearing
// guarantee; update cadence is the caller's problem.
func (d *Dev) WriteFrame(r image.Rectangle, pix []byte) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	if want := r.Dx() * r.Dy() * 2; len(pix) != want {
		return fmt.Errorf("st7789: frame for %v needs %d bytes, got %d", r, want, len(pix))
	}
	if err := d.SetWindow(r); err != nil {
		return err
	}
	return d.sendData(pix)
}

// Halt turns the panel output off, preserving its RAM.
func (d *Dev) Halt() error {
	return d.sendCommand(cmdDISPOFF)
}

// Close releases the SPI port. Idempotent; the GPIO lines need no explicit
// release under periph.
func (d *Dev) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.initialized = false
	if d.port != nil {
		if err := d.port.Close(); err != nil {
			return fmt.Errorf("st7789: closing spi port: %w", err)
		}
	}
	return nil
}

func (d *Dev) sendCommand(cmd byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: DC line: %v", ErrTransfer, err)
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("%w: command %#02x: %v", ErrTransfer, cmd, err)
	}
	return nil
}

func (d *Dev) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: DC line: %v", ErrTransfer, err)
	}
	for len(data) > 0 {
		n := len(data)
		if n > maxTxSize {
			n = maxTxSize
		}
		if err := d.c.Tx(data[:n], nil); err != nil {
			return fmt.Errorf("%w: %v", ErrTransfer, err)
		}
		data = data[n:]
	}
	return nil
}
