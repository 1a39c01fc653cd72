// Package rgb565 provides the 16-bit 5-6-5 pixel format the ST7789V consumes.
//
// Pixels are stored big-endian (most significant byte first), row-major from
// the top-left corner, which is exactly the order the panel's RAMWR command
// expects, so Image.Pix can be handed to the transmitter without copying.
package rgb565

import (
	"image"
	"image/color"
)

// RGB565 is a 16-bit color: 5 bits red, 6 bits green, 5 bits blue.
type RGB565 uint16

// New packs 8-bit channels into RGB565, truncating the low bits.
func New(r, g, b uint8) RGB565 {
	return RGB565(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// RGBA implements color.Color. Channels are expanded by bit replication so
// full-scale values map to full-scale 16-bit.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c >> 11 & 0x1F)
	g6 := uint32(c >> 5 & 0x3F)
	b5 := uint32(c & 0x1F)
	r = (r5<<3 | r5>>2) * 0x101
	g = (g6<<2 | g6>>4) * 0x101
	b = (b5<<3 | b5>>2) * 0x101
	return r, g, b, 0xFFFF
}

func toRGB565(c color.Color) color.Color {
	if v, ok := c.(RGB565); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return New(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Model converts colors to RGB565.
var Model = color.ModelFunc(toRGB565)

// Image is an in-memory RGB565 frame buffer.
type Image struct {
	// Pix holds big-endian 16-bit pixels, row-major top-left.
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewImage returns a zeroed (black) frame buffer with the given bounds.
func NewImage(r image.Rectangle) *Image {
	return &Image{
		Pix:    make([]byte, r.Dx()*r.Dy()*2),
		Stride: r.Dx() * 2,
		Rect:   r,
	}
}

// ColorModel implements image.Image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds implements image.Image.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At implements image.Image.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the pixel at (x, y), or black outside the bounds.
func (p *Image) RGB565At(x, y int) RGB565 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return 0
	}
	o := p.pixOffset(x, y)
	return RGB565(uint16(p.Pix[o])<<8 | uint16(p.Pix[o+1]))
}

// Set implements draw.Image.
func (p *Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.SetRGB565(x, y, Model.Convert(c).(RGB565))
}

// SetRGB565 sets the pixel at (x, y) without a color conversion.
func (p *Image) SetRGB565(x, y int, c RGB565) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	o := p.pixOffset(x, y)
	p.Pix[o] = byte(c >> 8)
	p.Pix[o+1] = byte(c)
}

// Fill sets every pixel to c.
func (p *Image) Fill(c RGB565) {
	hi, lo := byte(c>>8), byte(c)
	for i := 0; i < len(p.Pix); i += 2 {
		p.Pix[i] = hi
		p.Pix[i+1] = lo
	}
}

func (p *Image) pixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

// Convert renders src into a new frame buffer of the same size. The fast path
// for *image.RGBA avoids the color.Color boxing per pixel.
func Convert(src image.Image) *Image {
	b := src.Bounds()
	dst := NewImage(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rgba, ok := src.(*image.RGBA); ok {
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			o := rgba.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				c := New(rgba.Pix[o], rgba.Pix[o+1], rgba.Pix[o+2])
				dst.Pix[i] = byte(c >> 8)
				dst.Pix[i+1] = byte(c)
				i += 2
				o += 4
			}
		}
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, src.At(x, y))
		}
	}
	return dst
}

// FromRGB24 converts a packed 8-bit-per-channel RGB frame (the layout ffmpeg
// emits for -pix_fmt rgb24) of w*h*3 bytes into a frame buffer.
func FromRGB24(raw []byte, w, h int) *Image {
	dst := NewImage(image.Rect(0, 0, w, h))
	n := w * h
	if len(raw) < n*3 {
		n = len(raw) / 3
	}
	for i := 0; i < n; i++ {
		c := New(raw[i*3], raw[i*3+1], raw[i*3+2])
		dst.Pix[i*2] = byte(c >> 8)
		dst.Pix[i*2+1] = byte(c)
	}
	return dst
}
