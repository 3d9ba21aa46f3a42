package imageio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	markerSOI  = 0xD8
	markerAPP0 = 0xE0
	// JFIF density unit: dots per inch.
	densityUnitDPI = 1
)

var jfifIdentifier = []byte("JFIF\x00")

// Flatten composites img onto an opaque white background.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// EncodePrintJPEG encodes img as JPEG and tags it with a JFIF density of dpi
// dots per inch. The tag is metadata only; pixels are never resampled.
func EncodePrintJPEG(img image.Image, quality, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return SetJPEGDensity(buf.Bytes(), dpi)
}

// SetJPEGDensity patches the JFIF APP0 density of a JPEG stream, inserting a
// JFIF segment right after SOI when the stream has none.
func SetJPEGDensity(data []byte, dpi int) ([]byte, error) {
	if dpi <= 0 || dpi > 0xFFFF {
		return nil, fmt.Errorf("density %d out of range", dpi)
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errors.New("not a JPEG stream")
	}

	if off, ok := findJFIF(data); ok {
		out := make([]byte, len(data))
		copy(out, data)
		out[off+7] = densityUnitDPI
		binary.BigEndian.PutUint16(out[off+8:], uint16(dpi))
		binary.BigEndian.PutUint16(out[off+10:], uint16(dpi))
		return out, nil
	}

	// APP0: length(2) "JFIF\0"(5) version(2) units(1) Xdensity(2) Ydensity(2) thumb(2)
	seg := make([]byte, 0, 18)
	seg = append(seg, 0xFF, markerAPP0, 0x00, 0x10)
	seg = append(seg, jfifIdentifier...)
	seg = append(seg, 0x01, 0x02, densityUnitDPI)
	seg = binary.BigEndian.AppendUint16(seg, uint16(dpi))
	seg = binary.BigEndian.AppendUint16(seg, uint16(dpi))
	seg = append(seg, 0x00, 0x00)

	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	out = append(out, data[2:]...)
	return out, nil
}

// ReadJPEGDensity returns the JFIF density of a JPEG stream. ok is false
// when no JFIF segment is present or the unit is not dots per inch.
func ReadJPEGDensity(data []byte) (x, y int, ok bool) {
	off, found := findJFIF(data)
	if !found || data[off+7] != densityUnitDPI {
		return 0, 0, false
	}
	x = int(binary.BigEndian.Uint16(data[off+8:]))
	y = int(binary.BigEndian.Uint16(data[off+10:]))
	return x, y, true
}

// findJFIF returns the offset of the JFIF identifier inside the first APP0
// segment. The segment payload starts at off; density fields follow it.
func findJFIF(data []byte) (int, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return 0, false
	}
	pos := 2
	for pos+4 <= len(data) && data[pos] == 0xFF {
		marker := data[pos+1]
		length := int(binary.BigEndian.Uint16(data[pos+2:]))
		if length < 2 || pos+2+length > len(data) {
			return 0, false
		}
		if marker == markerAPP0 && length >= 16 && bytes.Equal(data[pos+4:pos+9], jfifIdentifier) {
			// payload offset relative to identifier: units at +7, densities at +8/+10
			return pos + 4, true
		}
		// Only markers before the first scan carry JFIF
		if marker == 0xDA {
			return 0, false
		}
		pos += 2 + length
	}
	return 0, false
}
