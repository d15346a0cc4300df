package crc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVariants(t *testing.T) {
	cases := []struct {
		name     string
		fn       Func
		input    []byte
		expected uint32
	}{
		{"reflected empty", Reflected, nil, 0},
		{"reflected check", Reflected, []byte("123456789"), 0x31},
		{"reflected fold", Reflected, []byte{0x01, 0x02, 0x04}, 0x07},
		{"ieee empty", IEEE, nil, 0},
		{"ieee check", IEEE, []byte("123456789"), 0xCBF43926},
		{"direct empty", Direct, nil, 0xFFFFFFFF},
		{"direct zero word", Direct, []byte{0}, 0xC704DD7B},
		{"direct check", Direct, []byte("123456789"), 0x1556F485},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.fn(tc.input))
		})
	}
}

func TestSingleBitFlip(t *testing.T) {
	data := []byte("GOS general communication protocol")
	for _, fn := range []Func{Reflected, Direct, IEEE} {
		sum := fn(data)
		for i := range data {
			for bit := uint(0); bit < 8; bit++ {
				flipped := append([]byte(nil), data...)
				flipped[i] ^= 1 << bit
				require.NotEqualf(t, sum, fn(flipped), "byte %d bit %d undetected", i, bit)
			}
		}
	}
}

func TestDirectHash(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	h := NewDirect()
	h.Write(data[:5])
	h.Write(data[5:])
	require.Equal(t, uint32(0xEB99FA90), h.Sum32())
	require.Equal(t, Direct(data), h.Sum32())
	require.Equal(t, []byte{0xEB, 0x99, 0xFA, 0x90}, h.Sum(nil))

	h.Reset()
	require.Equal(t, Direct(nil), h.Sum32())
}
