//go:build !with_mediadevices
// +build !with_mediadevices

package mediadevices

import (
	"context"

	"github.com/xaionaro-go/rtcencoder"
)

func Engines(ctx context.Context) []rtcencoder.Engine {
	return nil
}
