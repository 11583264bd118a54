package simulcast

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/engine/fake"
)

type collector struct {
	locker sync.Mutex
	images []rtcencoder.EncodedImage
}

func (c *collector) callback(_ context.Context, img rtcencoder.EncodedImage) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.images = append(c.images, img)
	return nil
}

func (c *collector) take() []rtcencoder.EncodedImage {
	c.locker.Lock()
	defer c.locker.Unlock()
	result := c.images
	c.images = nil
	return result
}

func threeStreams() rtcencoder.CodecSettings {
	return rtcencoder.CodecSettings{
		Codec:        rtcencoder.CodecNameVP8,
		Width:        1280,
		Height:       720,
		MaxFramerate: 30,
		SimulcastStreams: []rtcencoder.SimulcastStream{
			{Width: 320, Height: 180, MaxFramerate: 15, TargetBitrate: 150_000, MaxBitrate: 200_000, Active: true},
			{Width: 640, Height: 360, TargetBitrate: 500_000, MaxBitrate: 700_000, Active: true},
			{Width: 1280, Height: 720, TargetBitrate: 1_500_000, MaxBitrate: 2_500_000, Active: true},
		},
	}
}

func newFrame(w, h int, ts time.Duration) rtcencoder.VideoFrame {
	return rtcencoder.VideoFrame{
		Image:     image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420),
		Timestamp: ts,
	}
}

func newTestAdapter(t *testing.T) (*Adapter, *fake.PlatformFactory, *collector) {
	factory := fake.NewPlatformFactory()
	a := NewAdapter(factory, rtcencoder.NewSDPVideoFormat(rtcencoder.CodecNameVP8, nil))
	c := &collector{}
	a.RegisterEncodeCompleteCallback(c.callback)
	return a, factory, c
}

func TestAdapterLayers(t *testing.T) {
	ctx := context.Background()
	a, factory, c := newTestAdapter(t)

	require.NoError(t, a.InitEncode(ctx, threeStreams()))
	require.Equal(t, 3, a.NumLayers(ctx))

	encoders := factory.Engine.Encoders()
	require.Len(t, encoders, 3)
	assert.Equal(t, 320, encoders[0].Settings().Width)
	assert.Equal(t, float64(15), encoders[0].Settings().MaxFramerate)
	assert.Equal(t, uint64(150_000), encoders[0].Settings().StartBitrate)
	assert.Equal(t, 1280, encoders[2].Settings().Width)
	assert.Empty(t, encoders[2].Settings().SimulcastStreams)

	require.NoError(t, a.Encode(ctx, newFrame(1280, 720, time.Second), false))
	images := c.take()
	require.Len(t, images, 3)
	for idx, img := range images {
		assert.Equal(t, idx, img.SimulcastIndex)
		assert.Equal(t, encoders[idx].Settings().Width, img.Width)
		assert.Equal(t, encoders[idx].Settings().Height, img.Height)
		assert.Equal(t, time.Second, img.Timestamp)
		assert.True(t, img.IsKeyFrame)
	}

	require.NoError(t, a.Encode(ctx, newFrame(1280, 720, 2*time.Second), false))
	for _, img := range c.take() {
		assert.False(t, img.IsKeyFrame)
	}

	require.NoError(t, a.Encode(ctx, newFrame(1280, 720, 3*time.Second), true))
	for _, img := range c.take() {
		assert.True(t, img.IsKeyFrame)
	}

	info := a.GetEncoderInfo()
	assert.True(t, info.SupportsSimulcast)
	assert.True(t, info.IsHardwareAccelerated)
	assert.Equal(t, "SimulcastEncoderAdapter (fake-videotoolbox, fake-videotoolbox, fake-videotoolbox)", info.ImplementationName)
}

func TestAdapterInactiveStream(t *testing.T) {
	ctx := context.Background()
	a, _, c := newTestAdapter(t)

	settings := threeStreams()
	settings.SimulcastStreams[2].Active = false
	require.NoError(t, a.InitEncode(ctx, settings))

	require.NoError(t, a.Encode(ctx, newFrame(1280, 720, 0), false))
	images := c.take()
	require.Len(t, images, 2)
	assert.Equal(t, 0, images[0].SimulcastIndex)
	assert.Equal(t, 1, images[1].SimulcastIndex)
}

func TestAdapterSetRatesPausesLayers(t *testing.T) {
	ctx := context.Background()
	a, factory, c := newTestAdapter(t)
	require.NoError(t, a.InitEncode(ctx, threeStreams()))
	encoders := factory.Engine.Encoders()

	require.NoError(t, a.Encode(ctx, newFrame(1280, 720, 0), false))
	c.take()

	require.NoError(t, a.SetRates(ctx, rtcencoder.RateControlParameters{
		Bitrates:  []uint64{100_000, 0, 1_000_000},
		Framerate: 30,
	}))
	require.Len(t, encoders[0].Rates(), 1)
	assert.Equal(t, float64(15), encoders[0].Rates()[0].Framerate)
	assert.Equal(t, []uint64{100_000}, encoders[0].Rates()[0].Bitrates)
	assert.Empty(t, encoders[1].Rates())
	assert.Equal(t, float64(30), encoders[2].Rates()[0].Framerate)

	require.NoError(t, a.Encode(ctx, newFrame(1280, 720, time.Second), false))
	images := c.take()
	require.Len(t, images, 2)
	assert.Equal(t, 0, images[0].SimulcastIndex)
	assert.Equal(t, 2, images[1].SimulcastIndex)

	require.NoError(t, a.SetRates(ctx, rtcencoder.RateControlParameters{
		Bitrates: []uint64{100_000, 400_000, 1_000_000},
	}))
	require.NoError(t, a.Encode(ctx, newFrame(1280, 720, 2*time.Second), false))
	images = c.take()
	require.Len(t, images, 3)
	assert.False(t, images[0].IsKeyFrame)
	assert.True(t, images[1].IsKeyFrame)
	assert.False(t, images[2].IsKeyFrame)
}

func TestAdapterSingleStream(t *testing.T) {
	ctx := context.Background()
	a, factory, c := newTestAdapter(t)

	require.NoError(t, a.InitEncode(ctx, rtcencoder.CodecSettings{
		Codec:  rtcencoder.CodecNameVP8,
		Width:  640,
		Height: 480,
	}))
	require.Equal(t, 1, a.NumLayers(ctx))

	rates := rtcencoder.RateControlParameters{Bitrates: []uint64{0}, Framerate: 60}
	require.NoError(t, a.SetRates(ctx, rates))
	assert.Equal(t, []rtcencoder.RateControlParameters{rates}, factory.Engine.Encoders()[0].Rates())

	require.NoError(t, a.Encode(ctx, newFrame(640, 480, 0), false))
	images := c.take()
	require.Len(t, images, 1)
	assert.Equal(t, "VP8:640x480:0", string(images[0].Data))
}

func TestAdapterInvalidSettings(t *testing.T) {
	ctx := context.Background()
	a, factory, _ := newTestAdapter(t)

	settings := threeStreams()
	settings.SimulcastStreams = append(settings.SimulcastStreams, settings.SimulcastStreams[2])
	assert.Error(t, a.InitEncode(ctx, settings))

	settings = threeStreams()
	settings.SimulcastStreams[0], settings.SimulcastStreams[2] = settings.SimulcastStreams[2], settings.SimulcastStreams[0]
	assert.Error(t, a.InitEncode(ctx, settings))

	assert.Empty(t, factory.Engine.Encoders())
	assert.ErrorIs(t, a.Encode(ctx, newFrame(1280, 720, 0), false), rtcencoder.ErrNotInitialized)
	assert.ErrorIs(t, a.SetRates(ctx, rtcencoder.RateControlParameters{}), rtcencoder.ErrNotInitialized)
}

type failingFactory struct {
	rtcencoder.VideoEncoderFactory
	locker      sync.Mutex
	callsBudget int
}

func (f *failingFactory) CreateVideoEncoder(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
) (rtcencoder.Encoder, error) {
	f.locker.Lock()
	if f.callsBudget == 0 {
		f.locker.Unlock()
		return nil, errors.New("out of encoders")
	}
	f.callsBudget--
	f.locker.Unlock()
	return f.VideoEncoderFactory.CreateVideoEncoder(ctx, format)
}

func TestAdapterInitEncodeFailure(t *testing.T) {
	ctx := context.Background()
	platform := fake.NewPlatformFactory()
	factory := &failingFactory{VideoEncoderFactory: platform, callsBudget: 2}
	a := NewAdapter(factory, rtcencoder.NewSDPVideoFormat(rtcencoder.CodecNameVP8, nil))

	require.Error(t, a.InitEncode(ctx, threeStreams()))
	assert.Equal(t, 0, a.NumLayers(ctx))

	encoders := platform.Engine.Encoders()
	require.Len(t, encoders, 2)
	for _, enc := range encoders {
		assert.True(t, enc.IsClosed())
	}
}

func TestAdapterClose(t *testing.T) {
	ctx := context.Background()
	a, factory, _ := newTestAdapter(t)
	require.NoError(t, a.InitEncode(ctx, threeStreams()))

	require.NoError(t, a.InitEncode(ctx, threeStreams()))
	encoders := factory.Engine.Encoders()
	require.Len(t, encoders, 6)
	for idx, enc := range encoders {
		assert.Equal(t, idx < 3, enc.IsClosed(), idx)
	}

	require.NoError(t, a.Close())
	for _, enc := range factory.Engine.Encoders() {
		assert.True(t, enc.IsClosed())
	}
	require.NoError(t, a.Close())

	assert.ErrorIs(t, a.Encode(ctx, newFrame(1280, 720, 0), false), rtcencoder.ErrClosed)
	assert.ErrorIs(t, a.InitEncode(ctx, threeStreams()), rtcencoder.ErrClosed)
}

func TestScaleImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	assert.Same(t, src, scaleImage(src, 64, 48))

	dst := scaleImage(src, 32, 24)
	assert.Equal(t, image.Rect(0, 0, 32, 24), dst.Bounds())
}

func TestAdapterCallbackCallsAdapter(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAdapter(t)
	require.NoError(t, a.InitEncode(ctx, threeStreams()))

	var infos []rtcencoder.EncoderInfo
	a.RegisterEncodeCompleteCallback(func(ctx context.Context, img rtcencoder.EncodedImage) error {
		infos = append(infos, a.GetEncoderInfo())
		return a.SetRates(ctx, rtcencoder.RateControlParameters{
			Bitrates:  []uint64{100_000, 300_000, 1_000_000},
			Framerate: 30,
		})
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Encode(ctx, newFrame(1280, 720, time.Second), false)
	}()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Encode did not return")
	}
	require.Len(t, infos, 3)
	assert.True(t, infos[0].SupportsSimulcast)
}
