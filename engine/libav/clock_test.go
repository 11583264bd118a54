package libav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRTPClockConversion(t *testing.T) {
	for _, tc := range []struct {
		ts    time.Duration
		ticks int64
	}{
		{0, 0},
		{time.Second, 90000},
		{100 * time.Millisecond, 9000},
		{1500 * time.Millisecond, 135000},
		{72 * time.Hour, 72 * 3600 * 90000},
		{72*time.Hour + 40*time.Millisecond, 72*3600*90000 + 3600},
	} {
		assert.Equal(t, tc.ticks, durationToRTP(tc.ts), tc.ts.String())
		assert.Equal(t, tc.ts, rtpToDuration(tc.ticks), tc.ts.String())
	}
}
