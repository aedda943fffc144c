// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rfe

import (
	"image"
	"image/color"
	"strings"
	"time"
)

// ScreenData is a capture of the device LCD. Each byte of Rows holds eight
// vertically stacked pixels; bit y%8 of Rows[y/8][x] is pixel (x, y).
type ScreenData struct {
	Rows      [ScreenRows][ScreenWidth]byte
	Timestamp time.Time
}

func newScreenData(payload []byte, ts time.Time) ScreenData {
	s := ScreenData{Timestamp: ts}
	for row := range s.Rows {
		copy(s.Rows[row][:], payload[row*ScreenWidth:(row+1)*ScreenWidth])
	}
	return s
}

// Pixel reports whether pixel (x, y) is set. Out of range coordinates are
// unset.
func (s ScreenData) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	return s.Rows[y/8][x]&(1<<(y%8)) != 0
}

// Bytes returns the wire form of the buffer.
func (s ScreenData) Bytes() []byte {
	out := make([]byte, 0, ScreenDataLen)
	for row := range s.Rows {
		out = append(out, s.Rows[row][:]...)
	}
	return out
}

// ColorModel implements image.Image.
func (s ScreenData) ColorModel() color.Model {
	return color.GrayModel
}

// Bounds implements image.Image.
func (s ScreenData) Bounds() image.Rectangle {
	return image.Rect(0, 0, ScreenWidth, ScreenHeight)
}

// At implements image.Image. Set pixels are black on a white background.
func (s ScreenData) At(x, y int) color.Color {
	if s.Pixel(x, y) {
		return color.Gray{Y: 0}
	}
	return color.Gray{Y: 0xFF}
}

// ASCII renders the screen with one character per pixel.
func (s ScreenData) ASCII(on, off rune) string {
	var b strings.Builder
	b.Grow((ScreenWidth + 1) * ScreenHeight)
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if s.Pixel(x, y) {
				b.WriteRune(on)
			} else {
				b.WriteRune(off)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
