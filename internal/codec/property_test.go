package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Field widths per flag bit, kept apart from the layout tables on purpose so
// the length check is not circular.
var (
	indoorBikeWidths   = []int{2, 2, 2, 2, 3, 2, 2, 2, 5, 1, 1, 2, 2}
	cyclingPowerWidths = []int{1, 0, 2, 0, 6, 4, 4, 4, 3, 2, 2, 2, 0}
)

func expectedLength(flagWidth, mandatory int, widths []int, flags uint32) int {
	n := flagWidth + mandatory
	for bit, w := range widths {
		if flags&(1<<uint(bit)) != 0 {
			n += w
		}
	}
	return n
}

func filledBuffer(n int, flags uint32, flagWidth int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
	buf[0] = byte(flags)
	if flagWidth == 2 {
		buf[1] = byte(flags >> 8)
	}
	return buf
}

func TestIndoorBikeData_EveryFlagCombination(t *testing.T) {
	for flags := uint32(0); flags < 1<<len(indoorBikeWidths); flags++ {
		n := expectedLength(2, 0, indoorBikeWidths, flags)
		buf := filledBuffer(n, flags, 2)

		_, err := DecodeIndoorBikeData(buf)
		require.NoError(t, err, "flags 0x%04X exact length", flags)

		_, err = DecodeIndoorBikeData(buf[:n-1])
		require.ErrorIs(t, err, ErrTruncatedBuffer, "flags 0x%04X one short", flags)
	}
}

func TestCyclingPowerMeasurement_EveryFlagCombination(t *testing.T) {
	for flags := uint32(0); flags < 1<<len(cyclingPowerWidths); flags++ {
		n := expectedLength(2, 2, cyclingPowerWidths, flags)
		buf := filledBuffer(n, flags, 2)

		_, err := DecodeCyclingPowerMeasurement(buf)
		require.NoError(t, err, "flags 0x%04X exact length", flags)

		_, err = DecodeCyclingPowerMeasurement(buf[:n-1])
		require.ErrorIs(t, err, ErrTruncatedBuffer, "flags 0x%04X one short", flags)
	}
}

func TestHeartRateMeasurement_EveryFlagCombination(t *testing.T) {
	for flags := uint32(0); flags < 0x20; flags++ {
		n := 1 + 1
		if flags&HRValueUint16 != 0 {
			n = 1 + 2
		}
		if flags&HREnergyExpended != 0 {
			n += 2
		}
		for _, rrCount := range []int{0, 1, 3} {
			if rrCount > 0 && flags&HRRRIntervals == 0 {
				continue
			}
			total := n + 2*rrCount
			buf := filledBuffer(total, flags, 1)

			rec, err := DecodeHeartRateMeasurement(buf)
			require.NoError(t, err, "flags 0x%02X rr %d exact length", flags, rrCount)
			if flags&HRRRIntervals != 0 {
				assert.Len(t, rec.RRIntervals, rrCount)
			}

			_, err = DecodeHeartRateMeasurement(buf[:total-1])
			require.ErrorIs(t, err, ErrTruncatedBuffer, "flags 0x%02X rr %d one short", flags, rrCount)
		}
	}
}

func TestDecoders_NeverPanicOnShortInput(t *testing.T) {
	// every prefix of a fully populated message either decodes or fails cleanly
	full := filledBuffer(64, 0x1FFF, 2)
	for i := 0; i <= len(full); i++ {
		assert.NotPanics(t, func() {
			_, _ = DecodeIndoorBikeData(full[:i])
			_, _ = DecodeCyclingPowerMeasurement(full[:i])
		})
	}
	hr := filledBuffer(16, 0x1F, 1)
	for i := 0; i <= len(hr); i++ {
		assert.NotPanics(t, func() {
			_, _ = DecodeHeartRateMeasurement(hr[:i])
		})
	}
}
