package internal

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Assert panics (through the logger, so the message gets logged) if
// the condition does not hold.
func Assert(
	ctx context.Context,
	mustBeTrue bool,
	format string,
	args ...any,
) {
	if mustBeTrue {
		return
	}
	logger.Panic(ctx, "assertion failed: "+fmt.Sprintf(format, args...))
}
