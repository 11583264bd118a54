package libav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/rtcencoder"
)

func specOf(t *testing.T, typ rtcencoder.EncoderType) EngineSpec {
	for _, spec := range EngineSpecs {
		if spec.Type == typ {
			return spec
		}
	}
	require.FailNow(t, "no spec", typ.String())
	return EngineSpec{}
}

func TestEngineSpecs(t *testing.T) {
	seen := map[rtcencoder.EncoderType]bool{}
	for _, spec := range EngineSpecs {
		assert.False(t, seen[spec.Type], "duplicate spec for %s", spec.Type)
		seen[spec.Type] = true
		assert.NotEmpty(t, spec.Codecs(), spec.Type.String())
	}

	assert.Equal(t, rtcencoder.KnownCodecNames(), specOf(t, rtcencoder.EncoderTypeSoftware).Codecs())
	assert.Equal(t, []rtcencoder.CodecName{rtcencoder.CodecNameH264}, specOf(t, rtcencoder.EncoderTypeNVIDIA).Codecs())
	assert.Equal(t,
		[]rtcencoder.CodecName{rtcencoder.CodecNameVP8, rtcencoder.CodecNameVP9, rtcencoder.CodecNameH264},
		specOf(t, rtcencoder.EncoderTypeJetson).Codecs(),
	)
	assert.Equal(t, []string{"libx264", "libopenh264"}, specOf(t, rtcencoder.EncoderTypeSoftware).encoderNames("h264"))
	assert.Empty(t, specOf(t, rtcencoder.EncoderTypeMMAL).encoderNames(rtcencoder.CodecNameVP8))
}

func TestEngineSpecHardwareDeviceName(t *testing.T) {
	hw := rtcencoder.HardwareContexts{
		CUDA: rtcencoder.CUDAContext{DeviceName: "1"},
		MSDK: rtcencoder.MSDKSession{DeviceName: "/dev/dri/renderD128"},
	}
	assert.Equal(t, "1", specOf(t, rtcencoder.EncoderTypeNVIDIA).hardwareDeviceName(hw))
	assert.Equal(t, "/dev/dri/renderD128", specOf(t, rtcencoder.EncoderTypeIntel).hardwareDeviceName(hw))
	assert.Empty(t, specOf(t, rtcencoder.EncoderTypeSoftware).hardwareDeviceName(hw))
}

func TestEngineSpecCodecConfig(t *testing.T) {
	hw := rtcencoder.HardwareContexts{
		CUDA: rtcencoder.CUDAContext{DeviceName: "1"},
		MSDK: rtcencoder.MSDKSession{DeviceName: "/dev/dri/renderD129"},
	}

	cfg := specOf(t, rtcencoder.EncoderTypeNVIDIA).codecConfig("h264_nvenc", hw)
	assert.Equal(t, HardwareDeviceTypeNameCUDA, cfg.HardwareDeviceTypeName)
	assert.Equal(t, "1", cfg.HardwareDeviceName)
	assert.Equal(t, EncoderOptions["h264_nvenc"], cfg.Options)

	cfg = specOf(t, rtcencoder.EncoderTypeIntel).codecConfig("h264_qsv", hw)
	assert.Equal(t, HardwareDeviceTypeNameQSV, cfg.HardwareDeviceTypeName)
	assert.Equal(t, "/dev/dri/renderD129", cfg.HardwareDeviceName)

	cfg = specOf(t, rtcencoder.EncoderTypeSoftware).codecConfig("libvpx", hw)
	assert.Equal(t, HardwareDeviceTypeNameNone, cfg.HardwareDeviceTypeName)
	assert.Empty(t, cfg.HardwareDeviceName)
	assert.NotEmpty(t, cfg.Options)
}

func TestEncoderOptionsKnownEncoders(t *testing.T) {
	known := map[string]bool{}
	for _, spec := range append(EngineSpecs, VideoToolboxSpec) {
		for _, names := range spec.EncoderNames {
			for _, name := range names {
				known[name] = true
			}
		}
	}
	for name := range EncoderOptions {
		assert.True(t, known[name], name)
	}
}
