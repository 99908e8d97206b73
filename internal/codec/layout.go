package codec

import (
	"encoding/binary"
	"math/bits"
)

// presence says when a field is on the wire relative to its flag bit.
type presence int

const (
	whenSet presence = iota
	whenClear
	always
)

// field is one entry of a message layout. get and put see exactly width
// bytes. has reports whether an encoder should set the field's flag bit.
type field[R any] struct {
	name  string
	bit   uint
	when  presence
	width int
	get   func(rec *R, b []byte)
	put   func(rec *R, b []byte)
	has   func(rec *R) bool
}

func (f *field[R]) present(flags uint32) bool {
	switch f.when {
	case always:
		return true
	case whenClear:
		return flags&(1<<f.bit) == 0
	default:
		return flags&(1<<f.bit) != 0
	}
}

// layout is an ordered field table walked once per message with an explicit
// cursor. known holds every flag bit with a defined meaning, including bits
// that carry no payload.
type layout[R any] struct {
	message   string
	flagWidth int
	known     uint32
	fields    []field[R]
}

func (l *layout[R]) readFlags(buf []byte) uint32 {
	if l.flagWidth == 1 {
		return uint32(buf[0])
	}
	return uint32(binary.LittleEndian.Uint16(buf))
}

// decode fills rec and returns the cursor after the last consumed field.
func (l *layout[R]) decode(buf []byte, rec *R) (offset int, flags uint32, err error) {
	if len(buf) < l.flagWidth {
		return 0, 0, truncated(l.message, "flags", 0, l.flagWidth, len(buf))
	}
	flags = l.readFlags(buf)
	if unknown := flags &^ l.known; unknown != 0 {
		return 0, flags, &DecodeError{
			Message: l.message,
			Field:   "flags",
			Bit:     bits.TrailingZeros32(unknown),
			Len:     len(buf),
			Err:     ErrUnsupportedField,
		}
	}

	offset = l.flagWidth
	for i := range l.fields {
		f := &l.fields[i]
		if !f.present(flags) {
			continue
		}
		if len(buf)-offset < f.width {
			return offset, flags, truncated(l.message, f.name, offset, f.width, len(buf))
		}
		f.get(rec, buf[offset:offset+f.width])
		offset += f.width
	}
	return offset, flags, nil
}

// flagsFor derives the flag bits of the optional fields rec carries.
func (l *layout[R]) flagsFor(rec *R) uint32 {
	var flags uint32
	for i := range l.fields {
		f := &l.fields[i]
		if f.when == whenSet && f.has != nil && f.has(rec) {
			flags |= 1 << f.bit
		}
	}
	return flags
}

// size is the encoded length of the fields selected by flags.
func (l *layout[R]) size(flags uint32) int {
	n := l.flagWidth
	for i := range l.fields {
		if l.fields[i].present(flags) {
			n += l.fields[i].width
		}
	}
	return n
}

// encode writes flags and every field they select, reserving extra bytes at
// the end for the caller.
func (l *layout[R]) encode(flags uint32, rec *R, extra int) []byte {
	buf := make([]byte, l.size(flags)+extra)
	if l.flagWidth == 1 {
		buf[0] = byte(flags)
	} else {
		binary.LittleEndian.PutUint16(buf, uint16(flags))
	}
	offset := l.flagWidth
	for i := range l.fields {
		f := &l.fields[i]
		if !f.present(flags) {
			continue
		}
		f.put(rec, buf[offset:offset+f.width])
		offset += f.width
	}
	return buf
}

func ptr[T any](v T) *T {
	return &v
}

func val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func u16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func i16(b []byte) int16  { return int16(binary.LittleEndian.Uint16(b)) }
func u32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putI16(b []byte, v int16)  { binary.LittleEndian.PutUint16(b, uint16(v)) }
func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// u24 reads a 24-bit little-endian unsigned value from exactly three bytes.
func u24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putU24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
