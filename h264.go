package rtcencoder

import (
	"fmt"
	"strconv"
	"strings"
)

type H264Profile uint

const (
	H264ProfileUndefined = H264Profile(iota)
	H264ProfileConstrainedBaseline
	H264ProfileBaseline
	H264ProfileMain
	H264ProfileConstrainedHigh
	H264ProfileHigh
	H264ProfilePredictiveHigh444
	EndOfH264Profile
)

func (p H264Profile) String() string {
	switch p {
	case H264ProfileUndefined:
		return "<undefined>"
	case H264ProfileConstrainedBaseline:
		return "constrained_baseline"
	case H264ProfileBaseline:
		return "baseline"
	case H264ProfileMain:
		return "main"
	case H264ProfileConstrainedHigh:
		return "constrained_high"
	case H264ProfileHigh:
		return "high"
	case H264ProfilePredictiveHigh444:
		return "predictive_high_444"
	}
	return fmt.Sprintf("unexpected_h264_profile_%d", uint(p))
}

// H264Level is level_idc, except for H264Level1b which has no
// level_idc of its own.
type H264Level uint8

const (
	H264Level1b  = H264Level(0)
	H264Level1   = H264Level(10)
	H264Level1_1 = H264Level(11)
	H264Level1_2 = H264Level(12)
	H264Level1_3 = H264Level(13)
	H264Level2   = H264Level(20)
	H264Level2_1 = H264Level(21)
	H264Level2_2 = H264Level(22)
	H264Level3   = H264Level(30)
	H264Level3_1 = H264Level(31)
	H264Level3_2 = H264Level(32)
	H264Level4   = H264Level(40)
	H264Level4_1 = H264Level(41)
	H264Level4_2 = H264Level(42)
	H264Level5   = H264Level(50)
	H264Level5_1 = H264Level(51)
	H264Level5_2 = H264Level(52)
)

func (l H264Level) String() string {
	if l == H264Level1b {
		return "1b"
	}
	return fmt.Sprintf("%d.%d", uint8(l)/10, uint8(l)%10)
}

func (l H264Level) isValid() bool {
	switch l {
	case H264Level1b, H264Level1, H264Level1_1, H264Level1_2, H264Level1_3,
		H264Level2, H264Level2_1, H264Level2_2,
		H264Level3, H264Level3_1, H264Level3_2,
		H264Level4, H264Level4_1, H264Level4_2,
		H264Level5, H264Level5_1, H264Level5_2:
		return true
	}
	return false
}

const (
	h264ConstraintSet3Flag = 0x10
	h264Level1bIDC         = 11
)

type h264ProfilePattern struct {
	profileIDC uint8
	iopMask    uint8
	iopValue   uint8
	profile    H264Profile
}

// The bit patterns are from RFC 6184, table 5; the first match wins.
var h264ProfilePatterns = []h264ProfilePattern{
	{0x42, 0x4f, 0x40, H264ProfileConstrainedBaseline},
	{0x4d, 0x8f, 0x80, H264ProfileConstrainedBaseline},
	{0x58, 0xcf, 0xc0, H264ProfileConstrainedBaseline},
	{0x42, 0x4f, 0x00, H264ProfileBaseline},
	{0x58, 0xcf, 0x80, H264ProfileBaseline},
	{0x4d, 0xaf, 0x00, H264ProfileMain},
	{0x64, 0xff, 0x00, H264ProfileHigh},
	{0x64, 0xff, 0x0c, H264ProfileConstrainedHigh},
	{0xf4, 0xff, 0x00, H264ProfilePredictiveHigh444},
}

type H264ProfileLevelID struct {
	Profile H264Profile
	Level   H264Level
}

// String returns the 6-hex-digit "profile-level-id" value.
func (id H264ProfileLevelID) String() string {
	s, err := id.Format()
	if err != nil {
		return fmt.Sprintf("<invalid: %v>", err)
	}
	return s
}

func (id H264ProfileLevelID) Format() (string, error) {
	if !id.Level.isValid() {
		return "", fmt.Errorf("invalid H264 level %d", uint8(id.Level))
	}

	if id.Level == H264Level1b {
		switch id.Profile {
		case H264ProfileConstrainedBaseline:
			return "42f00b", nil
		case H264ProfileBaseline:
			return "42100b", nil
		case H264ProfileMain:
			return "4d100b", nil
		default:
			return "", fmt.Errorf("level 1b is not allowed for profile %s", id.Profile)
		}
	}

	var profileIOP string
	switch id.Profile {
	case H264ProfileConstrainedBaseline:
		profileIOP = "42e0"
	case H264ProfileBaseline:
		profileIOP = "4200"
	case H264ProfileMain:
		profileIOP = "4d00"
	case H264ProfileConstrainedHigh:
		profileIOP = "640c"
	case H264ProfileHigh:
		profileIOP = "6400"
	case H264ProfilePredictiveHigh444:
		profileIOP = "f400"
	default:
		return "", fmt.Errorf("unknown H264 profile %s", id.Profile)
	}
	return fmt.Sprintf("%s%02x", profileIOP, uint8(id.Level)), nil
}

func ParseH264ProfileLevelID(s string) (H264ProfileLevelID, error) {
	if len(s) != 6 {
		return H264ProfileLevelID{}, fmt.Errorf("profile-level-id '%s' is expected to be 6 hex digits long", s)
	}
	v, err := strconv.ParseUint(strings.ToLower(s), 16, 32)
	if err != nil {
		return H264ProfileLevelID{}, fmt.Errorf("unable to parse profile-level-id '%s': %w", s, err)
	}
	levelIDC := uint8(v & 0xff)
	profileIOP := uint8((v >> 8) & 0xff)
	profileIDC := uint8((v >> 16) & 0xff)

	level := H264Level(levelIDC)
	switch levelIDC {
	case h264Level1bIDC:
		if profileIOP&h264ConstraintSet3Flag != 0 {
			level = H264Level1b
		} else {
			level = H264Level1_1
		}
	case uint8(H264Level1b):
		return H264ProfileLevelID{}, fmt.Errorf("level_idc 0 is invalid in profile-level-id '%s'", s)
	}
	if !level.isValid() {
		return H264ProfileLevelID{}, fmt.Errorf("unknown level_idc %d in profile-level-id '%s'", levelIDC, s)
	}

	for _, p := range h264ProfilePatterns {
		if p.profileIDC == profileIDC && profileIOP&p.iopMask == p.iopValue {
			return H264ProfileLevelID{Profile: p.profile, Level: level}, nil
		}
	}
	return H264ProfileLevelID{}, fmt.Errorf("unknown profile in profile-level-id '%s'", s)
}

func CreateH264Format(
	profile H264Profile,
	level H264Level,
	packetizationMode string,
) SDPVideoFormat {
	return SDPVideoFormat{
		Name: CodecNameH264,
		Parameters: map[string]string{
			FmtpKeyH264ProfileLevelID:        H264ProfileLevelID{Profile: profile, Level: level}.String(),
			FmtpKeyH264LevelAsymmetryAllowed: "1",
			FmtpKeyH264PacketizationMode:     packetizationMode,
		},
	}
}

// DefaultH264Formats returns the H264 formats advertised by encoders
// that do not report their own list.
func DefaultH264Formats() []SDPVideoFormat {
	return []SDPVideoFormat{
		CreateH264Format(H264ProfileBaseline, H264Level3_1, "1"),
		CreateH264Format(H264ProfileBaseline, H264Level3_1, "0"),
		CreateH264Format(H264ProfileConstrainedBaseline, H264Level3_1, "1"),
		CreateH264Format(H264ProfileConstrainedBaseline, H264Level3_1, "0"),
	}
}

// H264ProfileLevelIDFromFormat returns the profile-level-id of the format;
// if the parameter is absent, Constrained Baseline 3.1 is assumed (RFC 6184
// says Baseline, but this is what browsers do).
func H264ProfileLevelIDFromFormat(f SDPVideoFormat) (H264ProfileLevelID, error) {
	s, ok := f.Parameters[FmtpKeyH264ProfileLevelID]
	if !ok {
		return H264ProfileLevelID{Profile: H264ProfileConstrainedBaseline, Level: H264Level3_1}, nil
	}
	return ParseH264ProfileLevelID(s)
}
