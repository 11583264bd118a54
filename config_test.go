package rtcencoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMarshalUnmarshal(t *testing.T) {
	cfg := &Config{
		VP8Encoder:          EncoderTypeSoftware,
		VP9Encoder:          EncoderTypeIntel,
		AV1Encoder:          EncoderTypeNotSupported,
		H264Encoder:         EncoderTypeNVIDIA,
		HardwareEncoderOnly: true,
		Simulcast:           true,
		HardwareContexts: HardwareContexts{
			CUDA: CUDAContext{DeviceName: "0"},
			MSDK: MSDKSession{DeviceName: "/dev/dri/renderD128"},
		},
	}

	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.Contains(t, string(b), "h264_encoder: nvidia")

	var cfgDup Config
	err = yaml.Unmarshal(b, &cfgDup)
	require.NoError(t, err, string(b))
	require.Equal(t, cfg, &cfgDup)

	parsed, err := ParseConfig(b)
	require.NoError(t, err)
	require.Equal(t, *cfg, parsed)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("h264_encoder: jetson\nhardware_encoder_only: true\n"))
	require.NoError(t, err)
	assert.Equal(t, EncoderTypeJetson, cfg.H264Encoder)
	assert.Equal(t, EncoderTypeDefault, cfg.VP8Encoder)
	assert.Equal(t, EncoderTypeDefault, cfg.VP9Encoder)
	assert.Equal(t, EncoderTypeDefault, cfg.AV1Encoder)
	assert.True(t, cfg.HardwareEncoderOnly)
	assert.False(t, cfg.Simulcast)

	_, err = ParseConfig([]byte("vp8_encoder: quantum\n"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encoders.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`{"vp9_encoder": "not-supported", "simulcast": true}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, EncoderTypeNotSupported, cfg.VP9Encoder)
	assert.True(t, cfg.Simulcast)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEncoderTypeParse(t *testing.T) {
	for typ := EncoderTypeUndefined + 1; typ < EndOfEncoderType; typ++ {
		parsed, err := ParseEncoderType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	parsed, err := ParseEncoderType(" NVIDIA ")
	require.NoError(t, err)
	assert.Equal(t, EncoderTypeNVIDIA, parsed)

	parsed, err = ParseEncoderType("")
	require.NoError(t, err)
	assert.Equal(t, EncoderTypeUndefined, parsed)

	_, err = ParseEncoderType("amd")
	assert.Error(t, err)

	var typ EncoderType
	require.NoError(t, typ.Set("v4l2"))
	assert.Equal(t, EncoderTypeV4L2, typ)
	assert.Equal(t, "v4l2", typ.String())
}

func TestEncoderTypeIsHardware(t *testing.T) {
	assert.False(t, EncoderTypeSoftware.IsHardware())
	assert.False(t, EncoderTypeDefault.IsHardware())
	assert.False(t, EncoderTypeNotSupported.IsHardware())
	assert.True(t, EncoderTypeNVIDIA.IsHardware())
	assert.True(t, EncoderTypeVideoToolbox.IsHardware())
}

func TestConfigEncoderTypeFor(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SetEncoderType("vp8", EncoderTypeJetson))
	assert.Equal(t, EncoderTypeJetson, cfg.EncoderTypeFor(CodecNameVP8))
	assert.Equal(t, EncoderTypeDefault, cfg.EncoderTypeFor(CodecNameAV1))
	assert.Equal(t, EncoderTypeNotSupported, cfg.EncoderTypeFor("H265"))
	assert.Error(t, cfg.SetEncoderType("H265", EncoderTypeSoftware))

	cfg.AV1Encoder = EndOfEncoderType
	assert.Error(t, cfg.Validate())
}
