// Package fake provides an in-memory encoder engine that produces
// deterministic payloads; it is used in tests and for dry runs.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtcencoder"
)

type Engine struct {
	Type        rtcencoder.EncoderType
	CodecNames  []rtcencoder.CodecName
	Unsupported bool

	locker   sync.Mutex
	encoders []*Encoder
}

var _ rtcencoder.Engine = (*Engine)(nil)

func NewEngine(
	t rtcencoder.EncoderType,
	codecs ...rtcencoder.CodecName,
) *Engine {
	if len(codecs) == 0 {
		codecs = rtcencoder.KnownCodecNames()
	}
	return &Engine{
		Type:       t,
		CodecNames: codecs,
	}
}

// AllEngines returns an engine of every type, claiming every codec.
func AllEngines() []rtcencoder.Engine {
	var result []rtcencoder.Engine
	for t := rtcencoder.EncoderTypeSoftware; t < rtcencoder.EncoderTypeNotSupported; t++ {
		result = append(result, NewEngine(t))
	}
	return result
}

func (e *Engine) String() string {
	return fmt.Sprintf("fake-%s", e.Type)
}

func (e *Engine) EncoderType() rtcencoder.EncoderType {
	return e.Type
}

func (e *Engine) Codecs() []rtcencoder.CodecName {
	return e.CodecNames
}

func (e *Engine) IsSupported(
	_ context.Context,
	codec rtcencoder.CodecName,
	_ rtcencoder.HardwareContexts,
) bool {
	return !e.Unsupported && slices.ContainsFunc(e.CodecNames, codec.Equal)
}

func (e *Engine) NewEncoder(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
	hw rtcencoder.HardwareContexts,
) (rtcencoder.Encoder, error) {
	if !slices.ContainsFunc(e.CodecNames, format.Name.Equal) {
		return nil, fmt.Errorf("%s does not support %s", e, format.Name)
	}
	logger.Debugf(ctx, "%s: new encoder for %s", e, format)
	enc := &Encoder{
		Engine:   e,
		Format:   format,
		Hardware: hw,
	}
	e.locker.Lock()
	defer e.locker.Unlock()
	e.encoders = append(e.encoders, enc)
	return enc, nil
}

// Encoders returns every encoder this engine has created.
func (e *Engine) Encoders() []*Encoder {
	e.locker.Lock()
	defer e.locker.Unlock()
	return slices.Clone(e.encoders)
}
