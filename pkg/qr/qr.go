// Package qr renders key-URIs as QR codes for authenticator apps.
// PNG and SVG implement otp.ImageEncoder.
package qr

import (
	"bytes"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultSize is the PNG edge length in pixels.
	DefaultSize = 256
	// DefaultModuleSize is the SVG edge length of one module in pixels.
	DefaultModuleSize = 4
)

var ErrEmptyBitmap = errors.New("qr: empty bitmap")

// PNG encodes content as a PNG image.
type PNG struct {
	// Size is the edge length in pixels. Zero means DefaultSize.
	Size int
}

func (p PNG) Encode(content string) ([]byte, error) {
	size := p.Size
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

func (PNG) ContentType() string { return "image/png" }

// SVG encodes content as an SVG document of black modules on white.
type SVG struct {
	// ModuleSize is the edge length of one module. Zero means DefaultModuleSize.
	ModuleSize int
}

func (s SVG) Encode(content string) ([]byte, error) {
	px := s.ModuleSize
	if px <= 0 {
		px = DefaultModuleSize
	}
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	bitmap := code.Bitmap()
	n := len(bitmap)
	if n == 0 {
		return nil, ErrEmptyBitmap
	}
	w := n * px
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, w, w, w)
	buf.WriteString(`<rect width="100%" height="100%" fill="white"/>`)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if bitmap[y][x] {
				fmt.Fprintf(&buf, `<rect x="%d" y="%d" width="%d" height="%d" fill="black"/>`, x*px, y*px, px, px)
			}
		}
	}
	buf.WriteString(`</svg>`)
	return buf.Bytes(), nil
}

func (SVG) ContentType() string { return "image/svg+xml" }

// Terminal renders content as text for a terminal, using two characters
// per module.
func Terminal(content string) (string, error) {
	code, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", err
	}
	return code.ToSmallString(false), nil
}
