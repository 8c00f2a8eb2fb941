package plc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBit_ChangesOnlyTargetBit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		orig := byte(rng.Intn(256))
		bit := rng.Intn(8)
		val := rng.Intn(2) == 1

		got := setBit(orig, bit, val)

		require.Equal(t, val, getBit(got, bit), "byte=%08b bit=%d", orig, bit)
		mask := ^(byte(1) << uint(bit))
		require.Equal(t, orig&mask, got&mask, "neighbor bits changed: byte=%08b bit=%d val=%v", orig, bit, val)
	}
}

func TestRealCodec_BigEndianIEEE754(t *testing.T) {
	b := encodeReal(1.5)
	assert.Equal(t, []byte{0x3F, 0xC0, 0x00, 0x00}, b)
	assert.Equal(t, 1.5, decodeReal(b))

	neg := encodeReal(-18.25)
	assert.Equal(t, -18.25, decodeReal(neg))
}

func TestAsFloatAndBool(t *testing.T) {
	f, err := asFloat(3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = asFloat("x")
	assert.Error(t, err)

	b, err := asBool(1.0)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = asBool("true")
	assert.Error(t, err)
}
