package rtcencoder

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"
)

type VideoFrame struct {
	Image     image.Image
	Timestamp time.Duration
}

func (f VideoFrame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f VideoFrame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

type EncodedImage struct {
	Data           []byte
	Width          int
	Height         int
	Timestamp      time.Duration
	IsKeyFrame     bool
	SimulcastIndex int
}

type EncodeCompleteCallback func(ctx context.Context, img EncodedImage) error

type SimulcastStream struct {
	Width         int     `json:"width"                   yaml:"width"`
	Height        int     `json:"height"                  yaml:"height"`
	MaxFramerate  float64 `json:"max_framerate,omitempty" yaml:"max_framerate,omitempty"`
	MinBitrate    uint64  `json:"min_bitrate,omitempty"   yaml:"min_bitrate,omitempty"`
	TargetBitrate uint64  `json:"target_bitrate,omitempty" yaml:"target_bitrate,omitempty"`
	MaxBitrate    uint64  `json:"max_bitrate,omitempty"   yaml:"max_bitrate,omitempty"`
	Active        bool    `json:"active"                  yaml:"active"`
}

// CodecSettings are the parameters an encoder is initialized with.
// Bitrates are in bits per second.
type CodecSettings struct {
	Codec            CodecName
	Width            int
	Height           int
	MaxFramerate     float64
	StartBitrate     uint64
	MinBitrate       uint64
	MaxBitrate       uint64
	KeyFrameInterval int
	SimulcastStreams []SimulcastStream
}

func (s CodecSettings) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", s.Width, s.Height)
	}
	if s.MaxFramerate < 0 {
		return fmt.Errorf("invalid max framerate %f", s.MaxFramerate)
	}
	if s.MaxBitrate != 0 && s.MinBitrate > s.MaxBitrate {
		return fmt.Errorf("min bitrate %d is higher than max bitrate %d", s.MinBitrate, s.MaxBitrate)
	}
	if s.KeyFrameInterval < 0 {
		return fmt.Errorf("invalid key frame interval %d", s.KeyFrameInterval)
	}
	for idx, stream := range s.SimulcastStreams {
		if stream.Width <= 0 || stream.Height <= 0 {
			return fmt.Errorf("invalid resolution %dx%d of simulcast stream #%d", stream.Width, stream.Height, idx)
		}
		if stream.MaxBitrate != 0 && stream.MinBitrate > stream.MaxBitrate {
			return fmt.Errorf("min bitrate %d is higher than max bitrate %d in simulcast stream #%d", stream.MinBitrate, stream.MaxBitrate, idx)
		}
	}
	return nil
}

// RateControlParameters carries the bitrate allocation per simulcast
// stream; a non-simulcast encoder only looks at index 0.
type RateControlParameters struct {
	Bitrates  []uint64
	Framerate float64
}

func (p RateControlParameters) TotalBitrate() uint64 {
	var sum uint64
	for _, b := range p.Bitrates {
		sum += b
	}
	return sum
}

func (p RateControlParameters) LayerBitrate(idx int) uint64 {
	if idx < 0 || idx >= len(p.Bitrates) {
		return 0
	}
	return p.Bitrates[idx]
}

type EncoderInfo struct {
	ImplementationName    string
	IsHardwareAccelerated bool
	SupportsSimulcast     bool
}

type Encoder interface {
	io.Closer

	InitEncode(ctx context.Context, settings CodecSettings) error
	RegisterEncodeCompleteCallback(callback EncodeCompleteCallback)
	Encode(ctx context.Context, frame VideoFrame, forceKeyFrame bool) error
	SetRates(ctx context.Context, rates RateControlParameters) error
	GetEncoderInfo() EncoderInfo
}
