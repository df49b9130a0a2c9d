// Package codec implements the wire codec used by the controller/dispatcher
// protocol: a single byte stream carrying length-prefixed, typed fields in
// big-endian order.
//
// Each primitive has exactly one encoding and exactly one decoding, and
// decoding a value always consumes exactly the number of bytes its encoder
// wrote. There is no reflection or type-annotation magic here on purpose:
// every field type the protocol needs has an explicit Write/Read pair, and
// composite shapes (optional, list) are built from those via small generic
// helpers rather than a runtime switch over a descriptor tag.
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer encodes typed fields onto an underlying byte stream.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w for typed, buffered encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Flush flushes any buffered bytes to the underlying stream. The protocol
// requires a flush after every packet is fully written.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) WriteBool(v bool) error {
	var b byte
	if v {
		b = 1
	}
	return w.w.WriteByte(b)
}

func (w *Writer) WriteI32(v int32) error {
	return w.writeFixed(uint32(v), 4)
}

func (w *Writer) WriteU32(v uint32) error {
	return w.writeFixed(v, 4)
}

func (w *Writer) WriteI64(v int64) error {
	return w.writeFixed64(uint64(v))
}

func (w *Writer) WriteU64(v uint64) error {
	return w.writeFixed64(v)
}

func (w *Writer) WriteBytes(v []byte) error {
	if err := w.WriteU64(uint64(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	_, err := w.w.Write(v)
	if err != nil {
		return fmt.Errorf("codec: write bytes: %w", err)
	}
	return nil
}

func (w *Writer) WriteString(v string) error {
	return w.WriteBytes([]byte(v))
}

func (w *Writer) writeFixed(v uint32, n int) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	if _, err := w.w.Write(buf[:n]); err != nil {
		return fmt.Errorf("codec: write u32: %w", err)
	}
	return nil
}

func (w *Writer) writeFixed64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	if _, err := w.w.Write(buf[:]); err != nil {
		return fmt.Errorf("codec: write u64: %w", err)
	}
	return nil
}

// WriteOptional encodes a presence flag followed by the value if present.
func WriteOptional[T any](w *Writer, v *T, enc func(*Writer, T) error) error {
	if v == nil {
		return w.WriteBool(false)
	}
	if err := w.WriteBool(true); err != nil {
		return err
	}
	return enc(w, *v)
}

// WriteList encodes a u64 element count followed by each encoded element.
func WriteList[T any](w *Writer, items []T, enc func(*Writer, T) error) error {
	if err := w.WriteU64(uint64(len(items))); err != nil {
		return err
	}
	for _, item := range items {
		if err := enc(w, item); err != nil {
			return err
		}
	}
	return nil
}

// Reader decodes typed fields from an underlying byte stream.
type Reader struct {
	r io.Reader
}

// NewReader wraps r for typed decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) ReadBool() (bool, error) {
	var buf [1]byte
	if err := r.readFull(buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.readFixed()
	return int32(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	return r.readFixed()
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.readFixed64()
	return int64(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	return r.readFixed64()
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) readFixed() (uint32, error) {
	var buf [4]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (r *Reader) readFixed64() (uint64, error) {
	var buf [8]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// readFull reads exactly len(buf) bytes. An EOF (including a partial read)
// is reported as a fatal stream error, matching the "unexpected EOF while
// decoding is a fatal I/O error" contract.
func (r *Reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("codec: unexpected EOF reading %d bytes: %w", len(buf), io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("codec: read: %w", err)
	}
	return nil
}

// ReadOptional decodes a presence flag followed by the value if present.
func ReadOptional[T any](r *Reader, dec func(*Reader) (T, error)) (*T, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := dec(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadList decodes a u64 element count followed by that many elements.
func ReadList[T any](r *Reader, dec func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := dec(r)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}
