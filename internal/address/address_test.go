package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eip55Vectors = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestChecksum_EIP55Vectors(t *testing.T) {
	for _, v := range eip55Vectors {
		assert.Equal(t, v, Checksum(strings.ToLower(v)))
	}
}

func TestNormalize_AcceptsChecksummedAndSingleCase(t *testing.T) {
	for _, v := range eip55Vectors {
		got, err := Normalize(v)
		require.NoError(t, err, v)
		assert.Equal(t, strings.ToLower(v), got)

		got, err = Normalize(strings.ToLower(v))
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(v), got)

		got, err = Normalize("0x" + strings.ToUpper(v[2:]))
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(v), got)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrEmpty},
		{"blank", "   ", ErrEmpty},
		{"no prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00", ErrFormat},
		{"short", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea", ErrFormat},
		{"non hex", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beazz", ErrFormat},
		{"bad checksum", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", ErrChecksum},
		{"zero", "0x0000000000000000000000000000000000000000", ErrZero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, Valid(tt.in))
		})
	}
}
