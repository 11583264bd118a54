// Package libav builds encoders on top of libavcodec (via go-astiav).
//
// It requires the "with_libav" build tag; without it Engines returns
// nothing.
package libav

import (
	"github.com/xaionaro-go/rtcencoder"
)

type DictionaryItem struct {
	Key   string
	Value string
}
type DictionaryItems []DictionaryItem

type HardwareDeviceTypeName string

const (
	HardwareDeviceTypeNameNone = HardwareDeviceTypeName("")
	HardwareDeviceTypeNameCUDA = HardwareDeviceTypeName("cuda")
	HardwareDeviceTypeNameQSV  = HardwareDeviceTypeName("qsv")
)

// EngineSpec describes which libavcodec encoders implement an
// EncoderType; for each codec the names are tried in order.
type EngineSpec struct {
	Type                   rtcencoder.EncoderType
	EncoderNames           map[rtcencoder.CodecName][]string
	HardwareDeviceTypeName HardwareDeviceTypeName
}

func (s EngineSpec) Codecs() []rtcencoder.CodecName {
	var result []rtcencoder.CodecName
	for _, codec := range rtcencoder.KnownCodecNames() {
		if len(s.EncoderNames[codec]) > 0 {
			result = append(result, codec)
		}
	}
	return result
}

func (s EngineSpec) encoderNames(codec rtcencoder.CodecName) []string {
	return s.EncoderNames[codec.Canonical()]
}

func (s EngineSpec) hardwareDeviceName(hw rtcencoder.HardwareContexts) string {
	switch s.HardwareDeviceTypeName {
	case HardwareDeviceTypeNameCUDA:
		return hw.CUDA.DeviceName
	case HardwareDeviceTypeNameQSV:
		return hw.MSDK.DeviceName
	}
	return ""
}

// codecConfig is everything newCodec needs besides the codec settings.
type codecConfig struct {
	EncoderName            string
	Options                DictionaryItems
	HardwareDeviceTypeName HardwareDeviceTypeName
	HardwareDeviceName     string
}

func (s EngineSpec) codecConfig(
	encoderName string,
	hw rtcencoder.HardwareContexts,
) codecConfig {
	return codecConfig{
		EncoderName:            encoderName,
		Options:                EncoderOptions[encoderName],
		HardwareDeviceTypeName: s.HardwareDeviceTypeName,
		HardwareDeviceName:     s.hardwareDeviceName(hw),
	}
}

var EngineSpecs = []EngineSpec{
	{
		Type: rtcencoder.EncoderTypeNVIDIA,
		EncoderNames: map[rtcencoder.CodecName][]string{
			rtcencoder.CodecNameH264: {"h264_nvenc"},
		},
		HardwareDeviceTypeName: HardwareDeviceTypeNameCUDA,
	},
	{
		Type: rtcencoder.EncoderTypeIntel,
		EncoderNames: map[rtcencoder.CodecName][]string{
			rtcencoder.CodecNameVP8:  {"vp8_qsv"},
			rtcencoder.CodecNameVP9:  {"vp9_qsv"},
			rtcencoder.CodecNameAV1:  {"av1_qsv"},
			rtcencoder.CodecNameH264: {"h264_qsv"},
		},
		HardwareDeviceTypeName: HardwareDeviceTypeNameQSV,
	},
	{
		Type: rtcencoder.EncoderTypeJetson,
		EncoderNames: map[rtcencoder.CodecName][]string{
			rtcencoder.CodecNameVP8:  {"vp8_nvmpi"},
			rtcencoder.CodecNameVP9:  {"vp9_nvmpi"},
			rtcencoder.CodecNameH264: {"h264_nvmpi"},
		},
	},
	{
		Type: rtcencoder.EncoderTypeMMAL,
		EncoderNames: map[rtcencoder.CodecName][]string{
			rtcencoder.CodecNameH264: {"h264_v4l2m2m", "h264_omx"},
		},
	},
	{
		Type: rtcencoder.EncoderTypeV4L2,
		EncoderNames: map[rtcencoder.CodecName][]string{
			rtcencoder.CodecNameH264: {"h264_v4l2m2m"},
		},
	},
	{
		Type: rtcencoder.EncoderTypeSoftware,
		EncoderNames: map[rtcencoder.CodecName][]string{
			rtcencoder.CodecNameVP8:  {"libvpx"},
			rtcencoder.CodecNameVP9:  {"libvpx-vp9"},
			rtcencoder.CodecNameAV1:  {"libaom-av1", "libsvtav1"},
			rtcencoder.CodecNameH264: {"libx264", "libopenh264"},
		},
	},
}

// VideoToolboxSpec is used by the platform factory rather than
// registered as an engine.
var VideoToolboxSpec = EngineSpec{
	Type: rtcencoder.EncoderTypeVideoToolbox,
	EncoderNames: map[rtcencoder.CodecName][]string{
		rtcencoder.CodecNameH264: {"h264_videotoolbox"},
	},
}

// EncoderOptions are the low-latency settings per libavcodec encoder.
var EncoderOptions = map[string]DictionaryItems{
	"libx264": {
		{Key: "preset", Value: "veryfast"},
		{Key: "tune", Value: "zerolatency"},
	},
	"libopenh264": {
		{Key: "allow_skip_frames", Value: "1"},
	},
	"libvpx": {
		{Key: "deadline", Value: "realtime"},
		{Key: "lag-in-frames", Value: "0"},
		{Key: "error-resilient", Value: "1"},
	},
	"libvpx-vp9": {
		{Key: "deadline", Value: "realtime"},
		{Key: "lag-in-frames", Value: "0"},
		{Key: "row-mt", Value: "1"},
	},
	"libaom-av1": {
		{Key: "usage", Value: "realtime"},
		{Key: "lag-in-frames", Value: "0"},
		{Key: "cpu-used", Value: "8"},
	},
	"libsvtav1": {
		{Key: "preset", Value: "12"},
	},
	"h264_nvenc": {
		{Key: "preset", Value: "p1"},
		{Key: "tune", Value: "ull"},
		{Key: "zerolatency", Value: "1"},
	},
	"h264_qsv": {
		{Key: "async_depth", Value: "1"},
		{Key: "low_power", Value: "1"},
	},
	"h264_videotoolbox": {
		{Key: "realtime", Value: "1"},
	},
}
