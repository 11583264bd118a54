package rtcencoder

import (
	"context"
	"fmt"
	"slices"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/xsync"
)

// Engine is an encoder implementation of a specific EncoderType
// (a vendor SDK, a library, a platform API).
type Engine interface {
	fmt.Stringer

	EncoderType() EncoderType
	Codecs() []CodecName
	IsSupported(ctx context.Context, codec CodecName, hw HardwareContexts) bool
	NewEncoder(ctx context.Context, format SDPVideoFormat, hw HardwareContexts) (Encoder, error)
}

// HardwareTypePriority is the order in which EncoderTypeDefault is
// resolved; the software encoder is the last resort.
var HardwareTypePriority = []EncoderType{
	EncoderTypeNVIDIA,
	EncoderTypeIntel,
	EncoderTypeJetson,
	EncoderTypeMMAL,
	EncoderTypeV4L2,
	EncoderTypeVideoToolbox,
}

type Registry struct {
	Locker  xsync.Mutex
	engines []Engine
}

func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{}
	r.engines = append(r.engines, engines...)
	return r
}

func (r *Registry) Register(ctx context.Context, engines ...Engine) {
	r.Locker.Do(ctx, func() {
		for _, e := range engines {
			logger.Debugf(ctx, "registering encoder engine %s (%s)", e, e.EncoderType())
			r.engines = append(r.engines, e)
		}
	})
}

func (r *Registry) Engines(ctx context.Context) []Engine {
	return xsync.DoR1(ctx, &r.Locker, func() []Engine {
		return slices.Clone(r.engines)
	})
}

// Find returns the first registered engine of the given type that
// claims the codec, without probing the hardware; or nil.
func (r *Registry) Find(
	ctx context.Context,
	t EncoderType,
	codec CodecName,
) Engine {
	for _, e := range r.Engines(ctx) {
		if e.EncoderType() != t {
			continue
		}
		if !slices.ContainsFunc(e.Codecs(), codec.Equal) {
			continue
		}
		return e
	}
	return nil
}

// Lookup is Find that also requires the engine to report the codec as
// supported on this machine.
func (r *Registry) Lookup(
	ctx context.Context,
	t EncoderType,
	codec CodecName,
	hw HardwareContexts,
) Engine {
	for _, e := range r.Engines(ctx) {
		if e.EncoderType() != t {
			continue
		}
		if !slices.ContainsFunc(e.Codecs(), codec.Equal) {
			continue
		}
		if !e.IsSupported(ctx, codec, hw) {
			continue
		}
		return e
	}
	return nil
}

// AvailableTypes returns all the encoder types that can encode the codec
// on this machine.
func (r *Registry) AvailableTypes(
	ctx context.Context,
	codec CodecName,
	hw HardwareContexts,
) []EncoderType {
	var result []EncoderType
	for _, e := range r.Engines(ctx) {
		t := e.EncoderType()
		if slices.Contains(result, t) {
			continue
		}
		if !slices.ContainsFunc(e.Codecs(), codec.Equal) {
			continue
		}
		if !e.IsSupported(ctx, codec, hw) {
			continue
		}
		result = append(result, t)
	}
	return result
}

func (r *Registry) BestType(
	ctx context.Context,
	codec CodecName,
	hw HardwareContexts,
) EncoderType {
	available := r.AvailableTypes(ctx, codec, hw)
	for _, t := range HardwareTypePriority {
		if slices.Contains(available, t) {
			return t
		}
	}
	if slices.Contains(available, EncoderTypeSoftware) {
		return EncoderTypeSoftware
	}
	return EncoderTypeNotSupported
}
