package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaionaro-go/rtcencoder"
)

type Encoder struct {
	Engine   *Engine
	Format   rtcencoder.SDPVideoFormat
	Hardware rtcencoder.HardwareContexts

	locker       sync.Mutex
	callback     rtcencoder.EncodeCompleteCallback
	settings     *rtcencoder.CodecSettings
	rates        []rtcencoder.RateControlParameters
	framesCount  int
	sinceKey     int
	keyFrameSeen []bool
	isClosed     bool
}

var _ rtcencoder.Encoder = (*Encoder)(nil)

func (e *Encoder) InitEncode(
	_ context.Context,
	settings rtcencoder.CodecSettings,
) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	e.locker.Lock()
	defer e.locker.Unlock()
	if e.isClosed {
		return rtcencoder.ErrClosed
	}
	e.settings = &settings
	e.framesCount = 0
	e.sinceKey = 0
	return nil
}

func (e *Encoder) RegisterEncodeCompleteCallback(
	callback rtcencoder.EncodeCompleteCallback,
) {
	e.locker.Lock()
	defer e.locker.Unlock()
	e.callback = callback
}

// Encode emits "<codec>:<width>x<height>:<frame number>". The callback is
// called with the lock released.
func (e *Encoder) Encode(
	ctx context.Context,
	frame rtcencoder.VideoFrame,
	forceKeyFrame bool,
) error {
	e.locker.Lock()
	if e.isClosed {
		e.locker.Unlock()
		return rtcencoder.ErrClosed
	}
	if e.settings == nil {
		e.locker.Unlock()
		return rtcencoder.ErrNotInitialized
	}
	if frame.Image == nil {
		e.locker.Unlock()
		return fmt.Errorf("no image in the frame")
	}

	isKeyFrame := forceKeyFrame || e.framesCount == 0
	if interval := e.settings.KeyFrameInterval; interval > 0 && e.sinceKey >= interval {
		isKeyFrame = true
	}
	if isKeyFrame {
		e.sinceKey = 0
	}
	e.sinceKey++
	e.keyFrameSeen = append(e.keyFrameSeen, isKeyFrame)

	img := rtcencoder.EncodedImage{
		Data:       []byte(fmt.Sprintf("%s:%dx%d:%d", e.Format.Name, frame.Width(), frame.Height(), e.framesCount)),
		Width:      frame.Width(),
		Height:     frame.Height(),
		Timestamp:  frame.Timestamp,
		IsKeyFrame: isKeyFrame,
	}
	e.framesCount++
	callback := e.callback
	e.locker.Unlock()

	if callback == nil {
		return nil
	}
	return callback(ctx, img)
}

func (e *Encoder) SetRates(
	_ context.Context,
	rates rtcencoder.RateControlParameters,
) error {
	e.locker.Lock()
	defer e.locker.Unlock()
	if e.isClosed {
		return rtcencoder.ErrClosed
	}
	e.rates = append(e.rates, rates)
	return nil
}

func (e *Encoder) GetEncoderInfo() rtcencoder.EncoderInfo {
	return rtcencoder.EncoderInfo{
		ImplementationName:    e.Engine.String(),
		IsHardwareAccelerated: e.Engine.Type.IsHardware(),
	}
}

func (e *Encoder) Close() error {
	e.locker.Lock()
	defer e.locker.Unlock()
	if e.isClosed {
		return fmt.Errorf("already closed")
	}
	e.isClosed = true
	return nil
}

func (e *Encoder) Settings() *rtcencoder.CodecSettings {
	e.locker.Lock()
	defer e.locker.Unlock()
	return e.settings
}

func (e *Encoder) Rates() []rtcencoder.RateControlParameters {
	e.locker.Lock()
	defer e.locker.Unlock()
	return append([]rtcencoder.RateControlParameters(nil), e.rates...)
}

func (e *Encoder) FramesCount() int {
	e.locker.Lock()
	defer e.locker.Unlock()
	return e.framesCount
}

// KeyFrames returns if each of the encoded frames was a key frame.
func (e *Encoder) KeyFrames() []bool {
	e.locker.Lock()
	defer e.locker.Unlock()
	return append([]bool(nil), e.keyFrameSeen...)
}

func (e *Encoder) IsClosed() bool {
	e.locker.Lock()
	defer e.locker.Unlock()
	return e.isClosed
}
