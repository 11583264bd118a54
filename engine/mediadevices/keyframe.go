package mediadevices

import (
	"github.com/xaionaro-go/rtcencoder"
)

// isKeyFrame inspects the bitstream, since the cgo encoders do not
// report the frame type.
func isKeyFrame(codecName rtcencoder.CodecName, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	switch {
	case codecName.Equal(rtcencoder.CodecNameVP8):
		// RFC 6386, section 9.1: the lowest bit is 0 for key frames.
		return data[0]&0x01 == 0
	case codecName.Equal(rtcencoder.CodecNameVP9):
		return isVP9KeyFrame(data)
	case codecName.Equal(rtcencoder.CodecNameH264):
		return hasH264IDR(data)
	}
	return false
}

func isVP9KeyFrame(data []byte) bool {
	b := data[0]
	if b>>6 != 0x2 { // frame_marker
		return false
	}
	profile := (b>>5)&1 | ((b>>4)&1)<<1
	shift := uint(3)
	if profile == 3 {
		shift = 2 // reserved_zero bit
	}
	if (b>>shift)&1 == 1 { // show_existing_frame
		return false
	}
	return (b>>(shift-1))&1 == 0
}

func hasH264IDR(data []byte) bool {
	for i := 0; i+3 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 {
			continue
		}
		var nalStart int
		switch {
		case data[i+2] == 1:
			nalStart = i + 3
		case data[i+2] == 0 && data[i+3] == 1 && i+4 < len(data):
			nalStart = i + 4
		default:
			continue
		}
		if data[nalStart]&0x1f == 5 {
			return true
		}
	}
	return false
}
