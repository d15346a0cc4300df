// Package codec serializes GCP payload records.
//
// Records are plain structs of fixed-size fields, packed without
// alignment padding in little-endian order. Strings are fixed-size
// NUL-padded byte arrays.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// Options are the packing options of all records.
var Options = &struc.Options{Order: binary.LittleEndian}

// ShortError is returned when the payload is smaller than the record.
type ShortError struct {
	Size     int
	Expected int
}

// Error implements error.
func (e *ShortError) Error() string {
	return fmt.Sprintf("short payload %d bytes, expect %d", e.Size, e.Expected)
}

// Marshal packs a record. v must be a pointer to struct.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, v, Options); err != nil {
		return nil, errors.Wrapf(err, "pack %T", v)
	}
	return buf.Bytes(), nil
}

// Unmarshal unpacks a record from the front of b. Trailing bytes are ignored.
func Unmarshal(b []byte, v interface{}) error {
	size, err := Sizeof(v)
	if err != nil {
		return err
	}
	if len(b) < size {
		return &ShortError{Size: len(b), Expected: size}
	}
	if err := struc.UnpackWithOptions(bytes.NewReader(b[:size]), v, Options); err != nil {
		return errors.Wrapf(err, "unpack %T", v)
	}
	return nil
}

// Sizeof returns the packed size of a record.
func Sizeof(v interface{}) (int, error) {
	size, err := struc.Sizeof(v)
	if err != nil {
		return 0, errors.Wrapf(err, "sizeof %T", v)
	}
	return size, nil
}

// MustSizeof is Sizeof which panics on error.
func MustSizeof(v interface{}) int {
	size, err := Sizeof(v)
	if err != nil {
		panic(err)
	}
	return size
}

// PutString copies s into the fixed-size field dst, truncated so
// that at least one terminating NUL remains, and zeros the rest.
func PutString(dst []byte, s string) {
	if len(dst) == 0 {
		return
	}
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// String decodes a NUL-padded field.
func String(b []byte) string {
	if pos := bytes.IndexByte(b, 0); pos >= 0 {
		b = b[:pos]
	}
	return string(b)
}
