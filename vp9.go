package rtcencoder

import (
	"fmt"
	"strconv"
)

type VP9Profile uint8

const (
	VP9Profile0 = VP9Profile(0)
	VP9Profile1 = VP9Profile(1)
	VP9Profile2 = VP9Profile(2)
	VP9Profile3 = VP9Profile(3)
)

func (p VP9Profile) String() string {
	return strconv.Itoa(int(p))
}

func ParseVP9Profile(s string) (VP9Profile, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unable to parse VP9 profile '%s': %w", s, err)
	}
	if v > uint64(VP9Profile3) {
		return 0, fmt.Errorf("unknown VP9 profile %d", v)
	}
	return VP9Profile(v), nil
}

// VP9ProfileFromFormat returns profile 0 if the format does not
// specify one.
func VP9ProfileFromFormat(f SDPVideoFormat) (VP9Profile, error) {
	s, ok := f.Parameters[FmtpKeyVP9ProfileID]
	if !ok {
		return VP9Profile0, nil
	}
	return ParseVP9Profile(s)
}

func CreateVP9Format(profile VP9Profile) SDPVideoFormat {
	return SDPVideoFormat{
		Name: CodecNameVP9,
		Parameters: map[string]string{
			FmtpKeyVP9ProfileID: profile.String(),
		},
	}
}

// SupportedVP9Codecs lists the VP9 formats of the software encoder:
// 8-bit profile 0 and 10-bit profile 2.
func SupportedVP9Codecs() []SDPVideoFormat {
	return []SDPVideoFormat{
		CreateVP9Format(VP9Profile0),
		CreateVP9Format(VP9Profile2),
	}
}
