package rtcencoder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/engine/fake"
)

func TestRegistryFindLookup(t *testing.T) {
	ctx := context.Background()

	nvidia := fake.NewEngine(rtcencoder.EncoderTypeNVIDIA, rtcencoder.CodecNameH264)
	nvidia.Unsupported = true
	software := fake.NewEngine(rtcencoder.EncoderTypeSoftware)
	r := rtcencoder.NewRegistry(nvidia)
	r.Register(ctx, software)

	require.Len(t, r.Engines(ctx), 2)

	assert.Equal(t, nvidia, r.Find(ctx, rtcencoder.EncoderTypeNVIDIA, "h264"))
	assert.Nil(t, r.Find(ctx, rtcencoder.EncoderTypeNVIDIA, rtcencoder.CodecNameVP8))
	assert.Nil(t, r.Lookup(ctx, rtcencoder.EncoderTypeNVIDIA, rtcencoder.CodecNameH264, rtcencoder.HardwareContexts{}))
	assert.Equal(t, software, r.Lookup(ctx, rtcencoder.EncoderTypeSoftware, rtcencoder.CodecNameAV1, rtcencoder.HardwareContexts{}))
}

func TestRegistryBestType(t *testing.T) {
	ctx := context.Background()
	hw := rtcencoder.HardwareContexts{}

	r := rtcencoder.NewRegistry(
		fake.NewEngine(rtcencoder.EncoderTypeSoftware),
		fake.NewEngine(rtcencoder.EncoderTypeV4L2, rtcencoder.CodecNameH264),
		fake.NewEngine(rtcencoder.EncoderTypeIntel, rtcencoder.CodecNameH264, rtcencoder.CodecNameAV1),
	)

	assert.Equal(t, rtcencoder.EncoderTypeIntel, r.BestType(ctx, rtcencoder.CodecNameH264, hw))
	assert.Equal(t, rtcencoder.EncoderTypeIntel, r.BestType(ctx, rtcencoder.CodecNameAV1, hw))
	assert.Equal(t, rtcencoder.EncoderTypeSoftware, r.BestType(ctx, rtcencoder.CodecNameVP8, hw))
	assert.Equal(t, rtcencoder.EncoderTypeNotSupported, r.BestType(ctx, "H265", hw))

	assert.Equal(t,
		[]rtcencoder.EncoderType{rtcencoder.EncoderTypeSoftware, rtcencoder.EncoderTypeV4L2, rtcencoder.EncoderTypeIntel},
		r.AvailableTypes(ctx, rtcencoder.CodecNameH264, hw),
	)

	assert.Equal(t, rtcencoder.EncoderTypeNotSupported, rtcencoder.NewRegistry().BestType(ctx, rtcencoder.CodecNameVP8, hw))
}

func TestGetOption(t *testing.T) {
	type optionA struct {
		rtcencoder.OptionCommons
		Value int
	}
	type optionB struct {
		rtcencoder.OptionCommons
	}

	opts := rtcencoder.Options{optionA{Value: 1}, optionB{}, optionA{Value: 2}}
	a, ok := rtcencoder.GetOption[optionA](opts)
	require.True(t, ok)
	assert.Equal(t, 2, a.Value)

	_, ok = rtcencoder.GetOption[optionB](rtcencoder.Options{optionA{}})
	assert.False(t, ok)
}
