//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/internal"
	"github.com/xaionaro-go/xsync"
)

type Encoder struct {
	Locker      xsync.Mutex
	engine      *Engine
	encoderName string
	format      rtcencoder.SDPVideoFormat
	hw          rtcencoder.HardwareContexts
	callback    atomic.Pointer[rtcencoder.EncodeCompleteCallback]

	codec    *codec
	frame    *astiav.Frame
	packet   *astiav.Packet
	settings rtcencoder.CodecSettings
	lastPTS  int64
	isClosed bool
}

var _ rtcencoder.Encoder = (*Encoder)(nil)

func newEncoder(
	ctx context.Context,
	engine *Engine,
	encoderName string,
	format rtcencoder.SDPVideoFormat,
	hw rtcencoder.HardwareContexts,
) *Encoder {
	e := &Encoder{
		engine:      engine,
		encoderName: encoderName,
		format:      format,
		hw:          hw,
		lastPTS:     -1,
	}
	internal.SetFinalizerClose(ctx, e)
	return e
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
	logger.Debugf(ctx, "InitEncode(ctx, %#+v) [%s]", settings, e.encoderName)
	defer func() { logger.Debugf(ctx, "/InitEncode(ctx, %#+v) [%s]: %v", settings, e.encoderName, _err) }()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid codec settings: %w", err)
	}

	return xsync.DoR1(ctx, &e.Locker, func() error {
		if e.isClosed {
			return rtcencoder.ErrClosed
		}
		e.release()

		c, err := newCodec(ctx, e.engine.Spec.codecConfig(e.encoderName, e.hw), settings)
		if err != nil {
			return fmt.Errorf("unable to initialize encoder '%s': %w", e.encoderName, err)
		}
		e.codec = c

		e.frame = astiav.AllocFrame()
		e.frame.SetWidth(settings.Width)
		e.frame.SetHeight(settings.Height)
		e.frame.SetPixelFormat(astiav.PixelFormatYuv420P)
		if err := e.frame.AllocBuffer(0); err != nil {
			e.release()
			return fmt.Errorf("unable to allocate the frame buffer: %w", err)
		}
		e.packet = astiav.AllocPacket()
		e.settings = settings
		e.lastPTS = -1
		return nil
	})
}

func toI420(img image.Image) (image.Image, error) {
	if ycbcr, ok := img.(*image.YCbCr); ok && ycbcr.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		return ycbcr, nil
	}
	r := video.ToI420(video.ReaderFunc(func() (image.Image, func(), error) {
		return img, func() {}, nil
	}))
	converted, release, err := r.Read()
	if release != nil {
		defer release()
	}
	if err != nil {
		return nil, err
	}
	return converted, nil
}

func (e *Encoder) Encode(
	ctx context.Context,
	frame rtcencoder.VideoFrame,
	forceKeyFrame bool,
) error {
	if frame.Image == nil {
		return fmt.Errorf("no image in the frame")
	}

	images, err := xsync.DoR2(ctx, &e.Locker, func() ([]rtcencoder.EncodedImage, error) {
		if e.isClosed {
			return nil, rtcencoder.ErrClosed
		}
		if e.codec == nil {
			return nil, rtcencoder.ErrNotInitialized
		}
		if frame.Width() != e.settings.Width || frame.Height() != e.settings.Height {
			return nil, fmt.Errorf(
				"the frame is %dx%d, while the encoder is configured for %dx%d",
				frame.Width(), frame.Height(), e.settings.Width, e.settings.Height,
			)
		}
		return e.encode(ctx, frame, forceKeyFrame)
	})
	if err != nil {
		return err
	}

	callback := e.callback.Load()
	if callback == nil {
		return nil
	}
	for _, img := range images {
		if err := (*callback)(ctx, img); err != nil {
			return fmt.Errorf("the encode-complete callback returned an error: %w", err)
		}
	}
	return nil
}

func (e *Encoder) encode(
	ctx context.Context,
	frame rtcencoder.VideoFrame,
	forceKeyFrame bool,
) ([]rtcencoder.EncodedImage, error) {
	img, err := toI420(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("unable to convert the image to I420: %w", err)
	}

	if err := e.frame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("unable to make the frame writable: %w", err)
	}
	if err := e.frame.Data().FromImage(img); err != nil {
		return nil, fmt.Errorf("unable to copy the image into the frame: %w", err)
	}

	pts := durationToRTP(frame.Timestamp)
	if pts <= e.lastPTS {
		pts = e.lastPTS + 1
	}
	e.lastPTS = pts
	e.frame.SetPts(pts)
	if forceKeyFrame {
		e.frame.SetPictureType(astiav.PictureTypeI)
	} else {
		e.frame.SetPictureType(astiav.PictureTypeNone)
	}

	if err := e.codec.codecContext.SendFrame(e.frame); err != nil {
		return nil, fmt.Errorf("unable to send the frame to the encoder: %w", err)
	}

	var result []rtcencoder.EncodedImage
	for {
		err := e.codec.codecContext.ReceivePacket(e.packet)
		if err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				break
			}
			return nil, fmt.Errorf("unable to receive a packet from the encoder: %w", err)
		}

		data := e.packet.Data()
		img := rtcencoder.EncodedImage{
			Data:       append([]byte(nil), data...),
			Width:      e.settings.Width,
			Height:     e.settings.Height,
			Timestamp:  rtpToDuration(e.packet.Pts()),
			IsKeyFrame: e.packet.Flags().Has(astiav.PacketFlagKey),
		}
		e.packet.Unref()
		logger.Tracef(ctx, "encoded %d bytes (key: %t) with '%s'", len(img.Data), img.IsKeyFrame, e.encoderName)
		result = append(result, img)
	}
	return result, nil
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
		logger.Debugf(ctx, "setting the bitrate of '%s' to %d", e.encoderName, bitrate)
		e.codec.codecContext.SetBitRate(int64(bitrate))
		return nil
	})
}

func (e *Encoder) GetEncoderInfo() rtcencoder.EncoderInfo {
	return rtcencoder.EncoderInfo{
		ImplementationName:    "libav:" + e.encoderName,
		IsHardwareAccelerated: e.engine.Spec.Type.IsHardware(),
	}
}

func (e *Encoder) Close() error {
	ctx := context.TODO()
	return xsync.DoR1(ctx, &e.Locker, func() error {
		if e.isClosed {
			return nil
		}
		e.isClosed = true
		return e.release()
	})
}

func (e *Encoder) release() error {
	if e.packet != nil {
		e.packet.Free()
		e.packet = nil
	}
	if e.frame != nil {
		e.frame.Free()
		e.frame = nil
	}
	if e.codec == nil {
		return nil
	}
	err := e.codec.Close()
	e.codec = nil
	return err
}
