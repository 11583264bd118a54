package rtcencoder

import (
	"context"
)

type VideoEncoderFactory interface {
	GetSupportedFormats(context.Context) []SDPVideoFormat
	CreateVideoEncoder(context.Context, SDPVideoFormat) (Encoder, error)
}
