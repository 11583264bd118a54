package internal

import (
	"context"
	"io"
	"runtime"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// SetFinalizerClose makes sure an encoder holding native resources
// is closed even if the caller forgot to.
func SetFinalizerClose[T io.Closer](
	ctx context.Context,
	closer T,
) {
	runtime.SetFinalizer(closer, func(closer T) {
		logger.Debugf(ctx, "closing %T", closer)
		if err := closer.Close(); err != nil {
			logger.Errorf(ctx, "unable to close %T: %v", closer, err)
		}
	})
}
