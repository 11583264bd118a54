package rtcencoder

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

type CodecName string

const (
	CodecNameVP8  = CodecName("VP8")
	CodecNameVP9  = CodecName("VP9")
	CodecNameAV1  = CodecName("AV1")
	CodecNameH264 = CodecName("H264")
)

// Equal compares codec names the way SDP does: case-insensitively.
func (n CodecName) Equal(other CodecName) bool {
	return strings.EqualFold(string(n), string(other))
}

// Canonical returns the well-known spelling of the name if it is one of
// the known codecs, or the name as is otherwise.
func (n CodecName) Canonical() CodecName {
	for _, known := range KnownCodecNames() {
		if n.Equal(known) {
			return known
		}
	}
	return n
}

func KnownCodecNames() []CodecName {
	return []CodecName{CodecNameVP8, CodecNameVP9, CodecNameAV1, CodecNameH264}
}

const (
	FmtpKeyH264ProfileLevelID        = "profile-level-id"
	FmtpKeyH264LevelAsymmetryAllowed = "level-asymmetry-allowed"
	FmtpKeyH264PacketizationMode     = "packetization-mode"
	FmtpKeyVP9ProfileID              = "profile-id"
)

type SDPVideoFormat struct {
	Name       CodecName         `json:"name"                 yaml:"name"`
	Parameters map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func NewSDPVideoFormat(
	name CodecName,
	params map[string]string,
) SDPVideoFormat {
	return SDPVideoFormat{
		Name:       name,
		Parameters: maps.Clone(params),
	}
}

func (f SDPVideoFormat) String() string {
	if len(f.Parameters) == 0 {
		return string(f.Name)
	}
	return fmt.Sprintf("%s {%s}", f.Name, f.FmtpLine())
}

// FmtpLine returns the parameters in the "a=fmtp" form, keys sorted.
func (f SDPVideoFormat) FmtpLine() string {
	keys := slices.Sorted(maps.Keys(f.Parameters))
	var b strings.Builder
	for idx, k := range keys {
		if idx > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(f.Parameters[k])
	}
	return b.String()
}

func (f SDPVideoFormat) Parameter(key string) (string, bool) {
	v, ok := f.Parameters[key]
	return v, ok
}

// IsSameCodec reports if both formats describe the same codec
// configuration, ignoring parameters that do not affect the bitstream.
func (f SDPVideoFormat) IsSameCodec(other SDPVideoFormat) bool {
	if !f.Name.Equal(other.Name) {
		return false
	}
	switch {
	case f.Name.Equal(CodecNameH264):
		if h264PacketizationMode(f) != h264PacketizationMode(other) {
			return false
		}
		a, errA := H264ProfileLevelIDFromFormat(f)
		b, errB := H264ProfileLevelIDFromFormat(other)
		if errA != nil || errB != nil {
			return false
		}
		return a.Profile == b.Profile
	case f.Name.Equal(CodecNameVP9):
		a, errA := VP9ProfileFromFormat(f)
		b, errB := VP9ProfileFromFormat(other)
		return errA == nil && errB == nil && a == b
	}
	return true
}

func h264PacketizationMode(f SDPVideoFormat) string {
	if mode, ok := f.Parameters[FmtpKeyH264PacketizationMode]; ok {
		return mode
	}
	return "0"
}

// ParseFmtpLine parses "k1=v1;k2=v2" into a map. Entries without
// a value are kept with an empty value.
func ParseFmtpLine(line string) map[string]string {
	result := map[string]string{}
	for _, item := range strings.Split(line, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v, _ := strings.Cut(item, "=")
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}

func ContainsFormat(formats []SDPVideoFormat, format SDPVideoFormat) bool {
	return slices.ContainsFunc(formats, format.IsSameCodec)
}
