//go:build with_libav && !darwin
// +build with_libav,!darwin

package libav

import (
	"context"
	"fmt"
	"runtime"

	"github.com/xaionaro-go/rtcencoder"
)

func NewPlatformFactory(ctx context.Context) (rtcencoder.VideoEncoderFactory, error) {
	return nil, fmt.Errorf("there is no platform encoder factory on %s", runtime.GOOS)
}
