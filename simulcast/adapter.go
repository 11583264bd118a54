// Package simulcast implements an encoder that produces several
// independently encoded resolutions of the same source, one nested
// encoder per resolution.
package simulcast

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/internal"
	"github.com/xaionaro-go/xsync"
)

const MaxStreams = 3

type layer struct {
	Index        int
	Encoder      rtcencoder.Encoder
	Settings     rtcencoder.CodecSettings
	IsPaused     bool
	NeedKeyFrame bool
}

type Adapter struct {
	Locker   xsync.Mutex
	factory  rtcencoder.VideoEncoderFactory
	format   rtcencoder.SDPVideoFormat
	callback atomic.Pointer[rtcencoder.EncodeCompleteCallback]
	layers   []*layer
	isClosed bool
}

var _ rtcencoder.Encoder = (*Adapter)(nil)

// NewAdapter does not create any encoders: they are created on InitEncode,
// when the amount of streams is known.
func NewAdapter(
	factory rtcencoder.VideoEncoderFactory,
	format rtcencoder.SDPVideoFormat,
) *Adapter {
	return &Adapter{
		factory: factory,
		format:  format,
	}
}

func (a *Adapter) Factory() rtcencoder.VideoEncoderFactory {
	return a.factory
}

func (a *Adapter) Format() rtcencoder.SDPVideoFormat {
	return a.format
}

func (a *Adapter) NumLayers(ctx context.Context) int {
	return xsync.DoR1(ctx, &a.Locker, func() int {
		return len(a.layers)
	})
}

func (a *Adapter) RegisterEncodeCompleteCallback(
	callback rtcencoder.EncodeCompleteCallback,
) {
	if callback == nil {
		a.callback.Store(nil)
		return
	}
	a.callback.Store(&callback)
}

func (a *Adapter) InitEncode(
	ctx context.Context,
	settings rtcencoder.CodecSettings,
) (_err error) {
	logger.Debugf(ctx, "InitEncode(ctx, %#+v)", settings)
	defer func() { logger.Debugf(ctx, "/InitEncode(ctx, %#+v): %v", settings, _err) }()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid codec settings: %w", err)
	}
	if len(settings.SimulcastStreams) > MaxStreams {
		return fmt.Errorf("too many simulcast streams: %d > %d", len(settings.SimulcastStreams), MaxStreams)
	}
	for idx := 1; idx < len(settings.SimulcastStreams); idx++ {
		prev, cur := settings.SimulcastStreams[idx-1], settings.SimulcastStreams[idx]
		if cur.Width < prev.Width || cur.Height < prev.Height {
			return fmt.Errorf(
				"simulcast streams are expected to be ordered by resolution, but #%d is %dx%d and #%d is %dx%d",
				idx-1, prev.Width, prev.Height, idx, cur.Width, cur.Height,
			)
		}
	}

	return xsync.DoR1(ctx, &a.Locker, func() error {
		if a.isClosed {
			return rtcencoder.ErrClosed
		}

		if err := a.releaseLayers(); err != nil {
			logger.Errorf(ctx, "unable to release the previous layers: %v", err)
		}

		layerSettings := layersSettings(settings)
		layers := make([]*layer, 0, len(layerSettings))
		for idx, s := range layerSettings {
			l, err := a.newLayer(ctx, idx, s.settings)
			if err != nil {
				for _, l := range layers {
					_ = l.Encoder.Close()
				}
				return fmt.Errorf("unable to initialize simulcast layer #%d: %w", idx, err)
			}
			l.IsPaused = !s.isActive
			layers = append(layers, l)
		}
		a.layers = layers
		return nil
	})
}

type layerSettingsWithState struct {
	settings rtcencoder.CodecSettings
	isActive bool
}

func layersSettings(
	settings rtcencoder.CodecSettings,
) []layerSettingsWithState {
	if len(settings.SimulcastStreams) <= 1 {
		s := settings
		s.SimulcastStreams = nil
		return []layerSettingsWithState{{settings: s, isActive: true}}
	}

	result := make([]layerSettingsWithState, 0, len(settings.SimulcastStreams))
	for _, stream := range settings.SimulcastStreams {
		s := rtcencoder.CodecSettings{
			Codec:            settings.Codec,
			Width:            stream.Width,
			Height:           stream.Height,
			MaxFramerate:     settings.MaxFramerate,
			StartBitrate:     stream.TargetBitrate,
			MinBitrate:       stream.MinBitrate,
			MaxBitrate:       stream.MaxBitrate,
			KeyFrameInterval: settings.KeyFrameInterval,
		}
		if stream.MaxFramerate > 0 {
			s.MaxFramerate = stream.MaxFramerate
		}
		if s.MaxBitrate != 0 && s.StartBitrate > s.MaxBitrate {
			s.StartBitrate = s.MaxBitrate
		}
		if s.StartBitrate < s.MinBitrate {
			s.StartBitrate = s.MinBitrate
		}
		result = append(result, layerSettingsWithState{settings: s, isActive: stream.Active})
	}
	return result
}

func (a *Adapter) newLayer(
	ctx context.Context,
	idx int,
	settings rtcencoder.CodecSettings,
) (_ret *layer, _err error) {
	encoder, err := a.factory.CreateVideoEncoder(ctx, a.format)
	if err != nil {
		return nil, fmt.Errorf("unable to create an encoder for format %s: %w", a.format, err)
	}
	internal.Assert(ctx, encoder != nil, "the factory returned a nil encoder without an error")
	defer func() {
		if _err != nil {
			_ = encoder.Close()
		}
	}()

	encoder.RegisterEncodeCompleteCallback(a.layerCallback(idx))
	if err := encoder.InitEncode(ctx, settings); err != nil {
		return nil, fmt.Errorf("unable to initialize the encoder %s: %w", encoder.GetEncoderInfo().ImplementationName, err)
	}

	return &layer{
		Index:        idx,
		Encoder:      encoder,
		Settings:     settings,
		NeedKeyFrame: true,
	}, nil
}

func (a *Adapter) layerCallback(idx int) rtcencoder.EncodeCompleteCallback {
	return func(ctx context.Context, img rtcencoder.EncodedImage) error {
		callback := a.callback.Load()
		if callback == nil {
			logger.Tracef(ctx, "no callback registered, dropping an encoded image of layer #%d", idx)
			return nil
		}
		img.SimulcastIndex = idx
		return (*callback)(ctx, img)
	}
}

type layerJob struct {
	layer         *layer
	forceKeyFrame bool
}

// Encode forwards the frame to every active layer. The layer encoders are
// called with the lock released, so the callback may call the adapter.
func (a *Adapter) Encode(
	ctx context.Context,
	frame rtcencoder.VideoFrame,
	forceKeyFrame bool,
) error {
	jobs, err := xsync.DoR2(ctx, &a.Locker, func() ([]layerJob, error) {
		if a.isClosed {
			return nil, rtcencoder.ErrClosed
		}
		if len(a.layers) == 0 {
			return nil, rtcencoder.ErrNotInitialized
		}

		jobs := make([]layerJob, 0, len(a.layers))
		for _, l := range a.layers {
			if l.IsPaused {
				continue
			}
			jobs = append(jobs, layerJob{layer: l, forceKeyFrame: forceKeyFrame || l.NeedKeyFrame})
			l.NeedKeyFrame = false
		}
		return jobs, nil
	})
	if err != nil {
		return err
	}

	for idx, job := range jobs {
		l := job.layer
		layerFrame := rtcencoder.VideoFrame{
			Image:     scaleImage(frame.Image, l.Settings.Width, l.Settings.Height),
			Timestamp: frame.Timestamp,
		}
		if err := l.Encoder.Encode(ctx, layerFrame, job.forceKeyFrame); err != nil {
			a.restoreKeyFrameRequests(ctx, jobs[idx:])
			return fmt.Errorf("unable to encode simulcast layer #%d: %w", l.Index, err)
		}
	}
	return nil
}

// restoreKeyFrameRequests makes the layers that did not get the frame
// request a key frame again on the next Encode.
func (a *Adapter) restoreKeyFrameRequests(
	ctx context.Context,
	jobs []layerJob,
) {
	a.Locker.Do(ctx, func() {
		for _, job := range jobs {
			if job.forceKeyFrame {
				job.layer.NeedKeyFrame = true
			}
		}
	})
}

// SetRates distributes the allocation among the layers; a layer
// allocated zero bitrate is paused until it gets a non-zero bitrate again.
func (a *Adapter) SetRates(
	ctx context.Context,
	rates rtcencoder.RateControlParameters,
) error {
	return xsync.DoR1(ctx, &a.Locker, func() error {
		if a.isClosed {
			return rtcencoder.ErrClosed
		}
		if len(a.layers) == 0 {
			return rtcencoder.ErrNotInitialized
		}

		if len(a.layers) == 1 {
			return a.layers[0].Encoder.SetRates(ctx, rates)
		}

		var result *multierror.Error
		for _, l := range a.layers {
			bitrate := rates.LayerBitrate(l.Index)
			if bitrate == 0 {
				if !l.IsPaused {
					logger.Debugf(ctx, "pausing simulcast layer #%d", l.Index)
				}
				l.IsPaused = true
				continue
			}
			if l.IsPaused {
				logger.Debugf(ctx, "resuming simulcast layer #%d", l.Index)
				l.IsPaused = false
				l.NeedKeyFrame = true
			}

			framerate := rates.Framerate
			if l.Settings.MaxFramerate > 0 && (framerate == 0 || framerate > l.Settings.MaxFramerate) {
				framerate = l.Settings.MaxFramerate
			}
			err := l.Encoder.SetRates(ctx, rtcencoder.RateControlParameters{
				Bitrates:  []uint64{bitrate},
				Framerate: framerate,
			})
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("unable to set rates of simulcast layer #%d: %w", l.Index, err))
			}
		}
		return result.ErrorOrNil()
	})
}

func (a *Adapter) GetEncoderInfo() rtcencoder.EncoderInfo {
	ctx := context.TODO()
	return xsync.DoR1(ctx, &a.Locker, func() rtcencoder.EncoderInfo {
		info := rtcencoder.EncoderInfo{
			SupportsSimulcast:     true,
			IsHardwareAccelerated: len(a.layers) > 0,
		}
		names := make([]string, 0, len(a.layers))
		for _, l := range a.layers {
			layerInfo := l.Encoder.GetEncoderInfo()
			names = append(names, layerInfo.ImplementationName)
			if !layerInfo.IsHardwareAccelerated {
				info.IsHardwareAccelerated = false
			}
		}
		info.ImplementationName = "SimulcastEncoderAdapter"
		if len(names) > 0 {
			info.ImplementationName += " (" + strings.Join(names, ", ") + ")"
		}
		return info
	})
}

func (a *Adapter) Close() error {
	ctx := context.TODO()
	return xsync.DoR1(ctx, &a.Locker, func() error {
		if a.isClosed {
			return nil
		}
		a.isClosed = true
		return a.releaseLayers()
	})
}

func (a *Adapter) releaseLayers() error {
	var result *multierror.Error
	for _, l := range a.layers {
		if err := l.Encoder.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close simulcast layer #%d: %w", l.Index, err))
		}
	}
	a.layers = nil
	return result.ErrorOrNil()
}
