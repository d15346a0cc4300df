// Package crc provides the CRC-32 variants used on the GCP wire.
//
// Two variants coexist in GOS firmware:
//
//   - Reflected: the bit loop of the OS CRC driver (polynomial 0xEDB88320).
//     The firmware loop applies the polynomial mask without shifting, so the
//     result degenerates to an XOR fold of the input. It is reproduced
//     bit-exactly because the frame and message layers of the device check it.
//   - Direct: the non-reflected division (polynomial 0x04C11DB7) of the
//     bootloader CRC driver, equivalent to the STM32 CRC unit fed one byte
//     per 32-bit word, without final inversion.
//
// IEEE is the textbook reflected CRC-32 for peers running fixed firmware.
package crc

import (
	"hash"
	"hash/crc32"
)

// Polynomials and initial value.
const (
	PolyReflected uint32 = 0xEDB88320
	PolyDirect    uint32 = 0x04C11DB7
	Init          uint32 = 0xFFFFFFFF
)

// Func computes a checksum over a buffer.
type Func func([]byte) uint32

// Reflected computes the GCP frame/message checksum.
// Reflected(nil) == 0.
func Reflected(p []byte) uint32 {
	return ^updateReflected(Init, p)
}

func updateReflected(c uint32, p []byte) uint32 {
	for _, b := range p {
		c ^= uint32(b)
		for i := 8; i > 0; i-- {
			mask := -(c & 1)
			c ^= PolyReflected & mask
		}
	}
	return c
}

// IEEE is the standard CRC-32 (hash/crc32).
func IEEE(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}

// Direct computes the bootloader CRC.
// Direct(nil) == 0xFFFFFFFF.
func Direct(p []byte) uint32 {
	return updateDirect(Init, p)
}

func updateDirect(c uint32, p []byte) uint32 {
	for _, b := range p {
		c ^= uint32(b)
		for i := 0; i < 32; i++ {
			if c&0x80000000 != 0 {
				c = (c << 1) ^ PolyDirect
			} else {
				c <<= 1
			}
		}
	}
	return c
}

type digest struct {
	crc uint32
}

// NewDirect creates a hash.Hash32 computing Direct incrementally.
func NewDirect() hash.Hash32 {
	return &digest{crc: Init}
}

func (d *digest) Write(p []byte) (int, error) {
	d.crc = updateDirect(d.crc, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return d.crc }

func (d *digest) Sum(in []byte) []byte {
	s := d.crc
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *digest) Reset()         { d.crc = Init }
func (d *digest) Size() int      { return 4 }
func (d *digest) BlockSize() int { return 1 }
