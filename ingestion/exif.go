package ingestion

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/text/encoding/unicode"
)

const exifTimeLayout = "2006:01:02 15:04:05"

var errNoExif = errors.New("no exif block")

// ReadKeywords returns the Windows XPKeywords tag of the image in r, decoded
// from UTF-16 with trailing NULs removed. Returns ErrNoKeywords when a
// well-formed JPEG has no EXIF block or no such tag, and ErrMalformedImage
// when r does not hold a readable JPEG.
func ReadKeywords(r io.Reader) (string, error) {
	x, err := readExif(r)
	if errors.Is(err, errNoExif) {
		return "", ErrNoKeywords
	}
	if err != nil {
		return "", err
	}

	tag, err := x.Get(exif.XPKeywords)
	if exif.IsTagNotPresentError(err) {
		return "", ErrNoKeywords
	}
	if err != nil {
		return "", err
	}
	return decodeUTF16(tag.Val)
}

// ReadTakenDate returns the DateTimeOriginal tag of the image in r. The
// wall-clock value is returned as UTC. Returns ErrNoTakenDate when a
// well-formed JPEG has no EXIF block or no such tag.
func ReadTakenDate(r io.Reader) (time.Time, error) {
	x, err := readExif(r)
	if errors.Is(err, errNoExif) {
		return time.Time{}, ErrNoTakenDate
	}
	if err != nil {
		return time.Time{}, err
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if exif.IsTagNotPresentError(err) {
		return time.Time{}, ErrNoTakenDate
	}
	if err != nil {
		return time.Time{}, err
	}

	s := strings.TrimRight(string(tag.Val), "\x00 ")
	t, err := time.ParseInLocation(exifTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("DateTimeOriginal %q: %w", s, err)
	}
	return t, nil
}

func readExif(r io.Reader) (*exif.Exif, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	hasExif, err := scanJPEG(data)
	if err != nil {
		return nil, err
	}
	if !hasExif {
		return nil, errNoExif
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err == nil {
		return x, nil
	}
	// Sub-IFD failures still leave IFD0 readable.
	if x != nil && !exif.IsCriticalError(err) {
		return x, nil
	}
	return nil, fmt.Errorf("decode exif: %w", err)
}

var exifHeader = []byte("Exif\x00\x00")

// scanJPEG walks the marker segments of a JPEG up to the scan data and
// reports whether one of them is an EXIF APP1 segment. An APP1 segment
// holding something else (XMP, for one) does not count.
func scanJPEG(data []byte) (bool, error) {
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		return false, fmt.Errorf("%w: no start of image marker", ErrMalformedImage)
	}

	hasExif := false
	i := 2
	for {
		if i >= len(data) {
			return false, fmt.Errorf("%w: truncated at offset %d", ErrMalformedImage, i)
		}
		if data[i] != 0xff {
			return false, fmt.Errorf("%w: expected marker at offset %d", ErrMalformedImage, i)
		}
		// Markers may be padded with fill bytes.
		for i < len(data) && data[i] == 0xff {
			i++
		}
		if i >= len(data) {
			return false, fmt.Errorf("%w: truncated at offset %d", ErrMalformedImage, i)
		}
		marker := data[i]
		i++

		switch {
		case marker == 0xd9 || marker == 0xda: // EOI, SOS
			return hasExif, nil
		case marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7):
			continue
		}

		if i+2 > len(data) {
			return false, fmt.Errorf("%w: truncated segment 0x%02x", ErrMalformedImage, marker)
		}
		n := int(binary.BigEndian.Uint16(data[i:]))
		if n < 2 || i+n > len(data) {
			return false, fmt.Errorf("%w: truncated segment 0x%02x", ErrMalformedImage, marker)
		}
		if marker == 0xe1 && bytes.HasPrefix(data[i+2:i+n], exifHeader) {
			hasExif = true
		}
		i += n
	}
}

func decodeUTF16(b []byte) (string, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode keywords: %w", err)
	}
	return strings.TrimRight(string(out), "\x00"), nil
}
