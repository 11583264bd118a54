//go:build with_mediadevices
// +build with_mediadevices

package mediadevices

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/internal"
	"github.com/xaionaro-go/xsync"
)

type Encoder struct {
	Locker   xsync.Mutex
	engine   *Engine
	format   rtcencoder.SDPVideoFormat
	callback atomic.Pointer[rtcencoder.EncodeCompleteCallback]

	codec    codec.ReadCloser
	settings rtcencoder.CodecSettings
	img      image.Image
	isClosed bool
}

var _ rtcencoder.Encoder = (*Encoder)(nil)

func newEncoder(
	ctx context.Context,
	engine *Engine,
	format rtcencoder.SDPVideoFormat,
) *Encoder {
	e := &Encoder{engine: engine, format: format}
	internal.SetFinalizerClose(ctx, e)
	return e
}

// read feeds the codec with the image currently being encoded.
func (e *Encoder) read() (image.Image, func(), error) {
	return e.img, func() {}, nil
}

func (e *Encoder) RegisterEncodeCompleteCallback(
	callback rtcencoder.EncodeCompleteCallback,
) {
	if callback == nil {
		e.callback.Store(nil)
		return
	}
	e.callback.Store(&callback)
}

func (e *Encoder) InitEncode(
	ctx context.Context,
	settings rtcencoder.CodecSettings,
) (_err error) {
	logger.Debugf(ctx, "InitEncode(ctx, %#+v) [%s]", settings, e.format.Name)
	defer func() { logger.Debugf(ctx, "/InitEncode(ctx, %#+v) [%s]: %v", settings, e.format.Name, _err) }()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid codec settings: %w", err)
	}

	builder, err := e.engine.newBuilder(e.format.Name, settings)
	if err != nil {
		return err
	}

	return xsync.DoR1(ctx, &e.Locker, func() error {
		if e.isClosed {
			return rtcencoder.ErrClosed
		}
		if e.codec != nil {
			if err := e.codec.Close(); err != nil {
				logger.Warnf(ctx, "unable to close the previous codec: %v", err)
			}
			e.codec = nil
		}

		c, err := builder.BuildVideoEncoder(
			video.ToI420(video.ReaderFunc(e.read)),
			prop.Media{
				Video: prop.Video{
					Width:     settings.Width,
					Height:    settings.Height,
					FrameRate: float32(settings.MaxFramerate),
				},
			},
		)
		if err != nil {
			return fmt.Errorf("unable to build the %s encoder: %w", e.format.Name, err)
		}
		e.codec = c
		e.settings = settings
		return nil
	})
}

func (e *Encoder) Encode(
	ctx context.Context,
	frame rtcencoder.VideoFrame,
	forceKeyFrame bool,
) error {
	if frame.Image == nil {
		return fmt.Errorf("no image in the frame")
	}

	encoded, err := xsync.DoR2(ctx, &e.Locker, func() (rtcencoder.EncodedImage, error) {
		if e.isClosed {
			return rtcencoder.EncodedImage{}, rtcencoder.ErrClosed
		}
		if e.codec == nil {
			return rtcencoder.EncodedImage{}, rtcencoder.ErrNotInitialized
		}

		if forceKeyFrame {
			if ctrl, ok := e.codec.Controller().(codec.KeyFrameController); ok {
				if err := ctrl.ForceKeyFrame(); err != nil {
					return rtcencoder.EncodedImage{}, fmt.Errorf("unable to force a key frame: %w", err)
				}
			} else {
				logger.Warnf(ctx, "the %s encoder cannot force key frames", e.format.Name)
			}
		}

		e.img = frame.Image
		data, release, err := e.codec.Read()
		e.img = nil
		if err != nil {
			return rtcencoder.EncodedImage{}, fmt.Errorf("unable to encode the frame: %w", err)
		}
		dataCopy := make([]byte, len(data))
		copy(dataCopy, data)
		if release != nil {
			release()
		}
		return rtcencoder.EncodedImage{
			Data:       dataCopy,
			Width:      e.settings.Width,
			Height:     e.settings.Height,
			Timestamp:  frame.Timestamp,
			IsKeyFrame: isKeyFrame(e.format.Name, dataCopy),
		}, nil
	})
	if err != nil {
		return err
	}
	if len(encoded.Data) == 0 {
		return nil
	}

	callback := e.callback.Load()
	if callback == nil {
		return nil
	}
	return (*callback)(ctx, encoded)
}

func (e *Encoder) SetRates(
	ctx context.Context,
	rates rtcencoder.RateControlParameters,
) error {
	return xsync.DoR1(ctx, &e.Locker, func() error {
		if e.isClosed {
			return rtcencoder.ErrClosed
		}
		if e.codec == nil {
			return rtcencoder.ErrNotInitialized
		}
		bitrate := rates.LayerBitrate(0)
		if bitrate == 0 {
			return nil
		}
		ctrl, ok := e.codec.Controller().(codec.BitRateController)
		if !ok {
			logger.Debugf(ctx, "the %s encoder cannot change the bitrate on the fly", e.format.Name)
			return nil
		}
		if err := ctrl.SetBitRate(int(bitrate)); err != nil {
			return fmt.Errorf("unable to set the bitrate to %d: %w", bitrate, err)
		}
		return nil
	})
}

func (e *Encoder) GetEncoderInfo() rtcencoder.EncoderInfo {
	return rtcencoder.EncoderInfo{
		ImplementationName:    fmt.Sprintf("%s:%s", e.engine, e.format.Name.Canonical()),
		IsHardwareAccelerated: e.engine.Type.IsHardware(),
	}
}

func (e *Encoder) Close() error {
	return xsync.DoR1(context.TODO(), &e.Locker, func() error {
		if e.isClosed {
			return nil
		}
		e.isClosed = true
		if e.codec == nil {
			return nil
		}
		err := e.codec.Close()
		e.codec = nil
		return err
	})
}
