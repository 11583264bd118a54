// Package encoderfactory selects and instantiates video encoders
// according to a static hardware capability configuration.
package encoderfactory

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/engine/builtin"
	"github.com/xaionaro-go/rtcencoder/simulcast"
)

type constructor func(ctx context.Context, format rtcencoder.SDPVideoFormat) (rtcencoder.Encoder, error)

type Factory struct {
	config          rtcencoder.Config
	registry        *rtcencoder.Registry
	platformFactory rtcencoder.VideoEncoderFactory
	fatalHandler    func(context.Context, *rtcencoder.FatalError)

	// internal is the non-simulcast factory the simulcast adapter takes
	// per-layer encoders from; nil if simulcast is disabled.
	internal *Factory
}

var _ rtcencoder.VideoEncoderFactory = (*Factory)(nil)

func NewFactory(
	ctx context.Context,
	cfg rtcencoder.Config,
	opts ...Option,
) (_ret *Factory, _err error) {
	logger.Debugf(ctx, "NewFactory(ctx, %#+v)", cfg)
	defer func() { logger.Debugf(ctx, "/NewFactory(ctx, %#+v): %v", cfg, _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := rtcencoder.Options(opts)
	f := &Factory{}

	if opt, ok := rtcencoder.GetOption[OptionRegistry](options); ok && opt.Registry != nil {
		f.registry = opt.Registry
	} else {
		f.registry = builtin.NewRegistry(ctx)
	}

	if opt, ok := rtcencoder.GetOption[OptionPlatformFactory](options); ok {
		f.platformFactory = opt.Factory
	} else {
		platformFactory, err := builtin.NewPlatformFactory(ctx)
		if err != nil {
			logger.Debugf(ctx, "no platform encoder factory: %v", err)
		} else {
			f.platformFactory = platformFactory
		}
	}

	if opt, ok := rtcencoder.GetOption[OptionFatalHandler](options); ok {
		f.fatalHandler = opt.Handler
	}

	f.config = f.resolveDefaults(ctx, cfg)

	if f.config.Simulcast {
		internalConfig := f.config
		internalConfig.Simulcast = false
		f.internal = &Factory{
			config:          internalConfig,
			registry:        f.registry,
			platformFactory: f.platformFactory,
			fatalHandler:    f.fatalHandler,
		}
	}

	return f, nil
}

func (f *Factory) resolveDefaults(
	ctx context.Context,
	cfg rtcencoder.Config,
) rtcencoder.Config {
	for _, codec := range rtcencoder.KnownCodecNames() {
		if cfg.EncoderTypeFor(codec) != rtcencoder.EncoderTypeDefault {
			continue
		}

		t := f.registry.BestType(ctx, codec, cfg.HardwareContexts)
		if !t.IsHardware() && codec.Equal(rtcencoder.CodecNameH264) && len(f.platformH264Formats(ctx)) > 0 {
			t = rtcencoder.EncoderTypeVideoToolbox
		}
		if cfg.HardwareEncoderOnly && t == rtcencoder.EncoderTypeSoftware {
			t = rtcencoder.EncoderTypeNotSupported
		}

		logger.Debugf(ctx, "resolved the default encoder for %s as %s", codec, t)
		if err := cfg.SetEncoderType(codec, t); err != nil {
			logger.Errorf(ctx, "unable to set the encoder type for %s: %v", codec, err)
		}
	}
	return cfg
}

func (f *Factory) String() string {
	if f.internal != nil {
		return fmt.Sprintf("EncoderFactory(simulcast; VP8:%s, VP9:%s, AV1:%s, H264:%s)",
			f.config.VP8Encoder, f.config.VP9Encoder, f.config.AV1Encoder, f.config.H264Encoder)
	}
	return fmt.Sprintf("EncoderFactory(VP8:%s, VP9:%s, AV1:%s, H264:%s)",
		f.config.VP8Encoder, f.config.VP9Encoder, f.config.AV1Encoder, f.config.H264Encoder)
}

// Config returns the configuration with the default encoder types resolved.
func (f *Factory) Config() rtcencoder.Config {
	return f.config
}

// Internal returns the nested factory used as the source of per-layer
// encoders in simulcast mode; nil if simulcast is disabled.
func (f *Factory) Internal() *Factory {
	return f.internal
}

func (f *Factory) Registry() *rtcencoder.Registry {
	return f.registry
}

func (f *Factory) hasEngine(
	ctx context.Context,
	t rtcencoder.EncoderType,
	codec rtcencoder.CodecName,
) bool {
	return f.registry.Find(ctx, t, codec) != nil
}

func (f *Factory) platformH264Formats(
	ctx context.Context,
) []rtcencoder.SDPVideoFormat {
	if f.platformFactory == nil {
		return nil
	}
	var result []rtcencoder.SDPVideoFormat
	for _, format := range f.platformFactory.GetSupportedFormats(ctx) {
		if format.Name.Equal(rtcencoder.CodecNameH264) {
			result = append(result, format)
		}
	}
	return result
}

func (f *Factory) GetSupportedFormats(
	ctx context.Context,
) []rtcencoder.SDPVideoFormat {
	var supported []rtcencoder.SDPVideoFormat
	hw := f.config.HardwareContexts

	// VP8
	switch t := f.config.VP8Encoder; t {
	case rtcencoder.EncoderTypeSoftware, rtcencoder.EncoderTypeJetson, rtcencoder.EncoderTypeIntel:
		if f.hasEngine(ctx, t, rtcencoder.CodecNameVP8) {
			supported = append(supported, rtcencoder.NewSDPVideoFormat(rtcencoder.CodecNameVP8, nil))
		}
	}

	// VP9
	switch t := f.config.VP9Encoder; t {
	case rtcencoder.EncoderTypeSoftware:
		if f.hasEngine(ctx, t, rtcencoder.CodecNameVP9) {
			supported = append(supported, rtcencoder.SupportedVP9Codecs()...)
		}
	case rtcencoder.EncoderTypeJetson, rtcencoder.EncoderTypeIntel:
		if f.hasEngine(ctx, t, rtcencoder.CodecNameVP9) {
			supported = append(supported, rtcencoder.CreateVP9Format(rtcencoder.VP9Profile0))
		}
	}

	// AV1
	switch t := f.config.AV1Encoder; t {
	case rtcencoder.EncoderTypeSoftware, rtcencoder.EncoderTypeIntel:
		if f.hasEngine(ctx, t, rtcencoder.CodecNameAV1) {
			supported = append(supported, rtcencoder.NewSDPVideoFormat(rtcencoder.CodecNameAV1, nil))
		}
	}

	// H264
	switch t := f.config.H264Encoder; t {
	case rtcencoder.EncoderTypeVideoToolbox:
		supported = append(supported, f.platformH264Formats(ctx)...)
	case rtcencoder.EncoderTypeNVIDIA, rtcencoder.EncoderTypeIntel:
		if f.registry.Lookup(ctx, t, rtcencoder.CodecNameH264, hw) != nil {
			supported = append(supported, rtcencoder.DefaultH264Formats()...)
		}
	case rtcencoder.EncoderTypeUndefined, rtcencoder.EncoderTypeDefault, rtcencoder.EncoderTypeNotSupported:
	default:
		if f.hasEngine(ctx, t, rtcencoder.CodecNameH264) {
			supported = append(supported, rtcencoder.DefaultH264Formats()...)
		}
	}

	return supported
}

// CreateVideoEncoder returns ErrUnsupportedFormat if the format is not
// among GetSupportedFormats, and a *rtcencoder.FatalError if
// a software encoder is requested while only hardware ones are allowed.
func (f *Factory) CreateVideoEncoder(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
) (_ret rtcencoder.Encoder, _err error) {
	logger.Debugf(ctx, "CreateVideoEncoder(ctx, %s)", format)
	defer func() { logger.Debugf(ctx, "/CreateVideoEncoder(ctx, %s): %T %v", format, _ret, _err) }()

	if f.config.HardwareEncoderOnly && f.config.EncoderTypeFor(format.Name) == rtcencoder.EncoderTypeSoftware {
		fatalErr := rtcencoder.NewSoftwareEncoderNotAllowedError(format.Name.Canonical())
		for _, hint := range fatalErr.Hints {
			logger.Error(ctx, hint)
		}
		if f.fatalHandler != nil {
			f.fatalHandler(ctx, fatalErr)
		}
		return nil, fatalErr
	}

	var create constructor
	if rtcencoder.ContainsFormat(f.GetSupportedFormats(ctx), format) {
		create = f.constructorFor(ctx, format)
	}
	if create == nil {
		logger.Errorf(ctx, "trying to create encoder of unsupported format %s", format.Name)
		return nil, fmt.Errorf("%w: %s", rtcencoder.ErrUnsupportedFormat, format)
	}

	return f.withSimulcast(ctx, format, create)
}

func (f *Factory) constructorFor(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
) constructor {
	codec := format.Name
	t := f.config.EncoderTypeFor(codec)

	switch {
	case codec.Equal(rtcencoder.CodecNameVP8), codec.Equal(rtcencoder.CodecNameVP9):
		switch t {
		case rtcencoder.EncoderTypeSoftware, rtcencoder.EncoderTypeJetson, rtcencoder.EncoderTypeIntel:
			return f.engineConstructor(ctx, t, codec, false)
		}

	case codec.Equal(rtcencoder.CodecNameAV1):
		switch t {
		case rtcencoder.EncoderTypeSoftware, rtcencoder.EncoderTypeIntel:
			return f.engineConstructor(ctx, t, codec, false)
		}

	case codec.Equal(rtcencoder.CodecNameH264):
		switch t {
		case rtcencoder.EncoderTypeVideoToolbox:
			if f.platformFactory != nil {
				return f.platformFactory.CreateVideoEncoder
			}
		case rtcencoder.EncoderTypeNVIDIA, rtcencoder.EncoderTypeIntel:
			return f.engineConstructor(ctx, t, codec, true)
		case rtcencoder.EncoderTypeMMAL, rtcencoder.EncoderTypeJetson, rtcencoder.EncoderTypeV4L2,
			rtcencoder.EncoderTypeSoftware:
			return f.engineConstructor(ctx, t, codec, false)
		}
	}

	return nil
}

// engineConstructor returns nil if no engine of the type is compiled in
// for the codec, or (if mustProbe is set) if the engine reports the
// hardware as unavailable.
func (f *Factory) engineConstructor(
	ctx context.Context,
	t rtcencoder.EncoderType,
	codec rtcencoder.CodecName,
	mustProbe bool,
) constructor {
	hw := f.config.HardwareContexts

	var engine rtcencoder.Engine
	if mustProbe {
		engine = f.registry.Lookup(ctx, t, codec, hw)
	} else {
		engine = f.registry.Find(ctx, t, codec)
	}
	if engine == nil {
		logger.Debugf(ctx, "no %s engine for %s", t, codec)
		return nil
	}

	return func(ctx context.Context, format rtcencoder.SDPVideoFormat) (rtcencoder.Encoder, error) {
		encoder, err := engine.NewEncoder(ctx, format, hw)
		if err != nil {
			return nil, fmt.Errorf("engine %s is unable to create an encoder for %s: %w", engine, format, err)
		}
		return encoder, nil
	}
}

func (f *Factory) withSimulcast(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
	create constructor,
) (rtcencoder.Encoder, error) {
	if f.internal != nil {
		logger.Debugf(ctx, "wrapping %s into the simulcast adapter", format)
		return simulcast.NewAdapter(f.internal, format), nil
	}
	return create(ctx, format)
}
