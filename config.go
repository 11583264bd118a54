package rtcencoder

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type EncoderType uint

const (
	EncoderTypeUndefined = EncoderType(iota)
	EncoderTypeDefault
	EncoderTypeSoftware
	EncoderTypeMMAL
	EncoderTypeJetson
	EncoderTypeNVIDIA
	EncoderTypeIntel
	EncoderTypeVideoToolbox
	EncoderTypeV4L2
	EncoderTypeNotSupported
	EndOfEncoderType
)

func (t EncoderType) String() string {
	switch t {
	case EncoderTypeUndefined:
		return "<undefined>"
	case EncoderTypeDefault:
		return "default"
	case EncoderTypeSoftware:
		return "software"
	case EncoderTypeMMAL:
		return "mmal"
	case EncoderTypeJetson:
		return "jetson"
	case EncoderTypeNVIDIA:
		return "nvidia"
	case EncoderTypeIntel:
		return "intel"
	case EncoderTypeVideoToolbox:
		return "videotoolbox"
	case EncoderTypeV4L2:
		return "v4l2"
	case EncoderTypeNotSupported:
		return "not_supported"
	}
	return fmt.Sprintf("unexpected_encoder_type_%d", uint(t))
}

func (t EncoderType) IsHardware() bool {
	switch t {
	case EncoderTypeMMAL, EncoderTypeJetson, EncoderTypeNVIDIA,
		EncoderTypeIntel, EncoderTypeVideoToolbox, EncoderTypeV4L2:
		return true
	}
	return false
}

func ParseEncoderType(s string) (EncoderType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return EncoderTypeUndefined, nil
	case "not-supported", "none":
		return EncoderTypeNotSupported, nil
	}
	for cmp := EncoderTypeUndefined; cmp < EndOfEncoderType; cmp++ {
		if cmp.String() == s {
			return cmp, nil
		}
	}
	return EncoderTypeUndefined, fmt.Errorf("unknown value of the EncoderType: '%s'", s)
}

func (t EncoderType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EncoderType) UnmarshalText(b []byte) error {
	if t == nil {
		return fmt.Errorf("EncoderType is nil")
	}
	v, err := ParseEncoderType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Set implements pflag.Value.
func (t *EncoderType) Set(s string) error {
	return t.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (EncoderType) Type() string {
	return "encoder-type"
}

type CUDAContext struct {
	DeviceName string `json:"device_name,omitempty" yaml:"device_name,omitempty"`
}

type MSDKSession struct {
	DeviceName string `json:"device_name,omitempty" yaml:"device_name,omitempty"`
}

type HardwareContexts struct {
	CUDA CUDAContext `json:"cuda,omitempty" yaml:"cuda,omitempty"`
	MSDK MSDKSession `json:"msdk,omitempty" yaml:"msdk,omitempty"`
}

type Config struct {
	VP8Encoder          EncoderType      `json:"vp8_encoder"                 yaml:"vp8_encoder"`
	VP9Encoder          EncoderType      `json:"vp9_encoder"                 yaml:"vp9_encoder"`
	AV1Encoder          EncoderType      `json:"av1_encoder"                 yaml:"av1_encoder"`
	H264Encoder         EncoderType      `json:"h264_encoder"                yaml:"h264_encoder"`
	HardwareEncoderOnly bool             `json:"hardware_encoder_only"       yaml:"hardware_encoder_only"`
	Simulcast           bool             `json:"simulcast"                   yaml:"simulcast"`
	HardwareContexts    HardwareContexts `json:"hardware_contexts,omitempty" yaml:"hardware_contexts,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		VP8Encoder:  EncoderTypeDefault,
		VP9Encoder:  EncoderTypeDefault,
		AV1Encoder:  EncoderTypeDefault,
		H264Encoder: EncoderTypeDefault,
	}
}

// EncoderTypeFor returns EncoderTypeNotSupported for unknown codecs.
func (cfg Config) EncoderTypeFor(codec CodecName) EncoderType {
	switch {
	case codec.Equal(CodecNameVP8):
		return cfg.VP8Encoder
	case codec.Equal(CodecNameVP9):
		return cfg.VP9Encoder
	case codec.Equal(CodecNameAV1):
		return cfg.AV1Encoder
	case codec.Equal(CodecNameH264):
		return cfg.H264Encoder
	}
	return EncoderTypeNotSupported
}

func (cfg *Config) SetEncoderType(codec CodecName, t EncoderType) error {
	switch {
	case codec.Equal(CodecNameVP8):
		cfg.VP8Encoder = t
	case codec.Equal(CodecNameVP9):
		cfg.VP9Encoder = t
	case codec.Equal(CodecNameAV1):
		cfg.AV1Encoder = t
	case codec.Equal(CodecNameH264):
		cfg.H264Encoder = t
	default:
		return fmt.Errorf("unknown codec '%s'", codec)
	}
	return nil
}

func (cfg Config) Validate() error {
	for _, codec := range KnownCodecNames() {
		t := cfg.EncoderTypeFor(codec)
		if t >= EndOfEncoderType {
			return fmt.Errorf("invalid encoder type %d for %s", uint(t), codec)
		}
	}
	return nil
}

// ParseConfig parses YAML (or JSON, as a subset of YAML). Codecs not
// mentioned stay at EncoderTypeDefault.
func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to un-YAML-ize the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("the config is invalid: %w", err)
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read the config file '%s': %w", path, err)
	}
	return ParseConfig(b)
}
