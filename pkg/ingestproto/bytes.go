package ingestproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// byteReader is a small cursor over an already-read payload. All multi-byte
// integers are big-endian, matching the frame header.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) exhausted() bool { return r.pos >= len(r.b) }

func (r *byteReader) need(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrMalformedFrame, n, len(r.b)-r.pos)
	}
	return nil
}

func (r *byteReader) uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) bool() (bool, error) {
	v, err := r.uint8()
	return v != 0, err
}

func (r *byteReader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *byteReader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *byteReader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.b[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *byteReader) timestampMicros() (time.Time, error) {
	v, err := r.uint64()
	if err != nil {
		return time.Time{}, err
	}
	return microsToTime(v), nil
}

// bytes4 reads a 4-byte BE length followed by that many raw bytes.
func (r *byteReader) bytes4() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.b[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *byteReader) lpString() (string, error) {
	b, err := r.bytes4()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// optionalBytes reads a 1-byte presence flag, then bytes4 if present.
func (r *byteReader) optionalBytes() ([]byte, error) {
	present, err := r.bool()
	if err != nil || !present {
		return nil, err
	}
	return r.bytes4()
}

// optionalStringMap reads a 1-byte presence flag, then a 4-byte BE entry
// count and that many lpString key/value pairs.
func (r *byteReader) optionalStringMap() (map[string]string, error) {
	present, err := r.bool()
	if err != nil || !present {
		return nil, err
	}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		k, err := r.lpString()
		if err != nil {
			return nil, err
		}
		v, err := r.lpString()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// byteWriter is the Encode-side counterpart of byteReader.
type byteWriter struct {
	buf *bytes.Buffer
}

func (w *byteWriter) uint8(v uint8) { w.buf.WriteByte(v) }

func (w *byteWriter) bool(v bool) {
	if v {
		w.uint8(1)
	} else {
		w.uint8(0)
	}
}

func (w *byteWriter) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *byteWriter) int32(v int32) { w.uint32(uint32(v)) }

func (w *byteWriter) uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *byteWriter) timestampMicros(t time.Time) { w.uint64(timeToMicros(t)) }

func (w *byteWriter) bytes4(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *byteWriter) lpString(s string) { w.bytes4([]byte(s)) }

func (w *byteWriter) optionalBytes(b []byte) {
	if b == nil {
		w.bool(false)
		return
	}
	w.bool(true)
	w.bytes4(b)
}

func (w *byteWriter) optionalStringMap(m map[string]string) {
	if m == nil {
		w.bool(false)
		return
	}
	w.bool(true)
	w.uint32(uint32(len(m)))
	for k, v := range m {
		w.lpString(k)
		w.lpString(v)
	}
}
