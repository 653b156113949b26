package mock

import (
	"bytes"
	"encoding/binary"
	"sort"
	"time"
	"unicode/utf16"
)

const (
	tagDateTimeOriginal uint16 = 0x9003
	tagXPKeywords       uint16 = 0x9c9e

	typeByte  uint16 = 1
	typeASCII uint16 = 2
)

type exifTag struct {
	id    uint16
	typ   uint16
	count uint32
	data  []byte
}

// JPEGOption adds an EXIF tag to a generated JPEG.
type JPEGOption func(map[uint16]exifTag)

// WithKeywords sets the Windows XPKeywords tag to s, encoded as
// NUL-terminated UTF-16LE.
func WithKeywords(s string) JPEGOption {
	var data []byte
	for _, u := range utf16.Encode([]rune(s)) {
		data = binary.LittleEndian.AppendUint16(data, u)
	}
	data = append(data, 0, 0)
	return WithRawTag(tagXPKeywords, typeByte, data)
}

// WithDateTimeOriginal sets the capture time tag.
func WithDateTimeOriginal(t time.Time) JPEGOption {
	data := append([]byte(t.Format("2006:01:02 15:04:05")), 0)
	return WithRawTag(tagDateTimeOriginal, typeASCII, data)
}

// WithRawTag stores data under tag id with the given TIFF type. The count is
// derived from len(data) for BYTE and ASCII types.
func WithRawTag(id, typ uint16, data []byte) JPEGOption {
	return func(tags map[uint16]exifTag) {
		tags[id] = exifTag{id: id, typ: typ, count: uint32(len(data)), data: data}
	}
}

// JPEG returns a minimal JPEG whose APP1 segment holds a little-endian EXIF
// block with the given tags in IFD0. It carries no image data, which is
// enough for metadata readers.
func JPEG(opts ...JPEGOption) []byte {
	tags := make(map[uint16]exifTag)
	for _, opt := range opts {
		opt(tags)
	}

	payload := append([]byte("Exif\x00\x00"), tiffBlock(tags)...)

	var b bytes.Buffer
	b.Write([]byte{0xff, 0xd8, 0xff, 0xe1})
	_ = binary.Write(&b, binary.BigEndian, uint16(len(payload)+2))
	b.Write(payload)
	b.Write([]byte{0xff, 0xd9})
	return b.Bytes()
}

// PlainJPEG returns a JPEG with no metadata segment at all.
func PlainJPEG() []byte {
	return []byte{0xff, 0xd8, 0xff, 0xd9}
}

func tiffBlock(tags map[uint16]exifTag) []byte {
	sorted := make([]exifTag, 0, len(tags))
	for _, t := range tags {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	le := binary.LittleEndian
	head := []byte("II*\x00")
	head = le.AppendUint32(head, 8)

	ifd := le.AppendUint16(nil, uint16(len(sorted)))
	dataStart := uint32(8 + 2 + 12*len(sorted) + 4)
	var extra []byte

	for _, t := range sorted {
		ifd = le.AppendUint16(ifd, t.id)
		ifd = le.AppendUint16(ifd, t.typ)
		ifd = le.AppendUint32(ifd, t.count)
		if len(t.data) <= 4 {
			inline := make([]byte, 4)
			copy(inline, t.data)
			ifd = append(ifd, inline...)
			continue
		}
		ifd = le.AppendUint32(ifd, dataStart+uint32(len(extra)))
		extra = append(extra, t.data...)
		if len(extra)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	ifd = le.AppendUint32(ifd, 0)

	out := append(head, ifd...)
	return append(out, extra...)
}
