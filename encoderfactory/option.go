package encoderfactory

import (
	"context"

	"github.com/xaionaro-go/rtcencoder"
)

type Option = rtcencoder.Option

// OptionRegistry sets the engines to build encoders with. Without it the
// engines compiled into the binary are used (see package builtin).
type OptionRegistry struct {
	rtcencoder.OptionCommons
	Registry *rtcencoder.Registry
}

// OptionPlatformFactory sets the factory provided by the OS (e.g.
// VideoToolbox on Apple platforms) that is consulted for
// EncoderTypeVideoToolbox.
type OptionPlatformFactory struct {
	rtcencoder.OptionCommons
	Factory rtcencoder.VideoEncoderFactory
}

// OptionFatalHandler is called when a fatal misconfiguration is detected,
// before the error is returned to the caller.
type OptionFatalHandler struct {
	rtcencoder.OptionCommons
	Handler func(ctx context.Context, err *rtcencoder.FatalError)
}
