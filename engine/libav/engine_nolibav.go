//go:build !with_libav
// +build !with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/rtcencoder"
)

func Engines(ctx context.Context) []rtcencoder.Engine {
	return nil
}

func NewPlatformFactory(ctx context.Context) (rtcencoder.VideoEncoderFactory, error) {
	return nil, fmt.Errorf("%w: not compiled with libav support", rtcencoder.ErrNotCompiled)
}
