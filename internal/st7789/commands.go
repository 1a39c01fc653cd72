package st7789

import "time"

// ST7789V command set (the subset this driver emits). See the ST7789V
// datasheet, chapter 9.
const (
	cmdNOP     = 0x00
	cmdSWRESET = 0x01 // software reset, needs 120ms before next command
	cmdSLPIN   = 0x10
	cmdSLPOUT  = 0x11 // exit sleep, needs a long settle delay
	cmdNORON   = 0x13
	cmdINVOFF  = 0x20
	cmdINVON   = 0x21
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A // column address window
	cmdRASET   = 0x2B // row address window
	cmdRAMWR   = 0x2C // memory write, pixel data follows
	cmdMADCTL  = 0x36 // memory data access control (orientation, RGB/BGR)
	cmdCOLMOD  = 0x3A // interface pixel format
)

// colmod16bpp selects 16-bit RGB565 pixels.
const colmod16bpp = 0x55

// Rotation selects the panel orientation via MADCTL.
type Rotation int

const (
	// Rotation0 is the panel-native portrait orientation (240 wide, 320 tall).
	Rotation0 Rotation = iota
	// Rotation90 is landscape (320 wide, 240 tall), BGR color order as wired
	// on the common 2.0" modules.
	Rotation90
	Rotation180
	Rotation270
)

// madctl returns the MADCTL value for the rotation. The landscape values set
// MV (row/column exchange); 0x60 additionally sets the BGR bit, matching the
// panel variant this was written against.
func (r Rotation) madctl() byte {
	switch r {
	case Rotation90:
		return 0x60
	case Rotation180:
		return 0xC0
	case Rotation270:
		return 0xA0
	default:
		return 0x00
	}
}

// swapsAxes reports whether the rotation exchanges rows and columns.
func (r Rotation) swapsAxes() bool {
	return r == Rotation90 || r == Rotation270
}

// initOp is one step of the power-up sequence: a command byte, its parameter
// bytes (sent with DC high), and the settle delay the datasheet requires
// before the next command.
type initOp struct {
	cmd    byte
	params []byte
	delay  time.Duration
}

// initSequence is the vendor-defined ST7789V power-up sequence. It is kept as
// a table rather than inline writes so the emitted stream can be checked
// against a golden sequence without hardware.
func initSequence(madctl byte) []initOp {
	return []initOp{
		{cmd: cmdSWRESET, delay: 150 * time.Millisecond},
		{cmd: cmdSLPOUT, delay: 500 * time.Millisecond},
		{cmd: cmdMADCTL, params: []byte{madctl}},
		{cmd: cmdCOLMOD, params: []byte{colmod16bpp}},
		{cmd: cmdINVON},
		{cmd: cmdNORON, delay: 10 * time.Millisecond},
		{cmd: cmdDISPON, delay: 100 * time.Millisecond},
	}
}
