package libav

import (
	"time"
)

const rtpClockRate = 90000

// durationToRTP converts a timestamp to RTP clock ticks without
// overflowing on long-running streams.
func durationToRTP(ts time.Duration) int64 {
	secs, rem := ts/time.Second, ts%time.Second
	return int64(secs)*rtpClockRate + int64(rem)*rtpClockRate/int64(time.Second)
}

func rtpToDuration(ticks int64) time.Duration {
	secs, rem := ticks/rtpClockRate, ticks%rtpClockRate
	return time.Duration(secs)*time.Second + time.Duration(rem*int64(time.Second)/rtpClockRate)
}
