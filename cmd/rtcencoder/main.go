package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/encoderfactory"
	"github.com/xaionaro-go/rtcencoder/engine/builtin"
	"github.com/xaionaro-go/rtcencoder/engine/fake"
	"github.com/xaionaro-go/rtcencoder/rtpcodec"
	"gopkg.in/yaml.v3"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [options]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	cfg := rtcencoder.DefaultConfig()
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	configPath := pflag.String("config", "", "path to a YAML config file; the flags below override it")
	pflag.Var(&cfg.VP8Encoder, "vp8-encoder", "VP8 encoder type")
	pflag.Var(&cfg.VP9Encoder, "vp9-encoder", "VP9 encoder type")
	pflag.Var(&cfg.AV1Encoder, "av1-encoder", "AV1 encoder type")
	pflag.Var(&cfg.H264Encoder, "h264-encoder", "H264 encoder type")
	pflag.BoolVar(&cfg.HardwareEncoderOnly, "hw-encoder-only", false, "refuse to use software encoders")
	pflag.BoolVar(&cfg.Simulcast, "simulcast", false, "wrap encoders into the simulcast adapter")
	pflag.StringVar(&cfg.HardwareContexts.CUDA.DeviceName, "cuda-device", "", "CUDA device to use for NVIDIA encoders")
	pflag.StringVar(&cfg.HardwareContexts.MSDK.DeviceName, "msdk-device", "", "device to use for Intel Media SDK encoders")
	listEngines := pflag.Bool("video-codec-engines", false, "print the available encoder engines and exit")
	dryRun := pflag.Bool("dry-run", false, "use in-memory fake engines instead of the real ones")
	createCodec := pflag.String("create", "", "create an encoder for the given codec and encode a test pattern")
	width := pflag.Int("width", 1280, "test pattern width")
	height := pflag.Int("height", 720, "test pattern height")
	frames := pflag.Int("frames", 30, "amount of test pattern frames to encode")
	layers := pflag.Int("layers", 1, "amount of simulcast layers")
	firstPT := pflag.Uint8("rtp-first-payload-type", 0, "if non-zero, register the supported formats in a WebRTC media engine starting from this payload type")
	pflag.Parse()
	if len(pflag.Args()) != 0 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	if *configPath != "" {
		fileCfg, err := rtcencoder.LoadConfig(*configPath)
		if err != nil {
			l.Fatal(err)
		}
		cfg = mergeFlags(fileCfg, cfg)
	}
	logger.Debugf(ctx, "config: %s", spew.Sdump(cfg))

	opts := []encoderfactory.Option{
		encoderfactory.OptionFatalHandler{Handler: func(ctx context.Context, err *rtcencoder.FatalError) {
			fmt.Fprintln(os.Stderr, err.Error())
			for _, hint := range err.Hints {
				fmt.Fprintln(os.Stderr, hint)
			}
			belt.Flush(ctx)
			os.Exit(1)
		}},
	}
	var registry *rtcencoder.Registry
	if *dryRun {
		registry = rtcencoder.NewRegistry(fake.AllEngines()...)
		opts = append(opts, encoderfactory.OptionPlatformFactory{Factory: fake.NewPlatformFactory()})
	} else {
		registry = builtin.NewRegistry(ctx)
	}
	opts = append(opts, encoderfactory.OptionRegistry{Registry: registry})

	if *listEngines {
		printEngines(ctx, registry, cfg.HardwareContexts)
		return
	}

	factory, err := encoderfactory.NewFactory(ctx, cfg, opts...)
	if err != nil {
		l.Fatal(err)
	}

	formats := factory.GetSupportedFormats(ctx)
	if *createCodec == "" {
		b, err := yaml.Marshal(factory.Config())
		if err != nil {
			l.Fatal(err)
		}
		fmt.Printf("%s\n", b)
		fmt.Println("supported formats:")
		for _, format := range formats {
			fmt.Printf("\t%s\n", format)
		}
	}

	if *firstPT != 0 {
		registered, err := rtpcodec.RegisterVideoCodecs(&webrtc.MediaEngine{}, formats, webrtc.PayloadType(*firstPT))
		if err != nil {
			l.Fatal(err)
		}
		fmt.Println("RTP codecs:")
		for _, c := range registered {
			fmt.Printf("\t%d: %s %s\n", c.PayloadType, c.MimeType, c.SDPFmtpLine)
		}
	}

	if *createCodec == "" {
		return
	}

	err = encodeTestPattern(ctx, factory, formats, testPatternParams{
		Codec:  rtcencoder.CodecName(*createCodec).Canonical(),
		Width:  *width,
		Height: *height,
		Frames: *frames,
		Layers: *layers,
	})
	if err != nil {
		l.Fatal(err)
	}
}

// mergeFlags applies the explicitly passed flags over the config file.
func mergeFlags(fileCfg, flagsCfg rtcencoder.Config) rtcencoder.Config {
	result := fileCfg
	pflag.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "vp8-encoder":
			result.VP8Encoder = flagsCfg.VP8Encoder
		case "vp9-encoder":
			result.VP9Encoder = flagsCfg.VP9Encoder
		case "av1-encoder":
			result.AV1Encoder = flagsCfg.AV1Encoder
		case "h264-encoder":
			result.H264Encoder = flagsCfg.H264Encoder
		case "hw-encoder-only":
			result.HardwareEncoderOnly = flagsCfg.HardwareEncoderOnly
		case "simulcast":
			result.Simulcast = flagsCfg.Simulcast
		case "cuda-device":
			result.HardwareContexts.CUDA = flagsCfg.HardwareContexts.CUDA
		case "msdk-device":
			result.HardwareContexts.MSDK = flagsCfg.HardwareContexts.MSDK
		}
	})
	return result
}

func printEngines(
	ctx context.Context,
	registry *rtcencoder.Registry,
	hw rtcencoder.HardwareContexts,
) {
	engines := registry.Engines(ctx)
	if len(engines) == 0 {
		fmt.Println("no encoder engines are compiled in (see build tags with_libav and with_mediadevices)")
		return
	}
	for _, e := range engines {
		var codecs []string
		for _, codec := range e.Codecs() {
			state := "unavailable"
			if e.IsSupported(ctx, codec, hw) {
				state = "available"
			}
			codecs = append(codecs, fmt.Sprintf("%s (%s)", codec, state))
		}
		fmt.Printf("%s [%s]: %s\n", e, e.EncoderType(), strings.Join(codecs, ", "))
	}
	for _, codec := range rtcencoder.KnownCodecNames() {
		fmt.Printf("default %s encoder: %s\n", codec, registry.BestType(ctx, codec, hw))
	}
}

type testPatternParams struct {
	Codec  rtcencoder.CodecName
	Width  int
	Height int
	Frames int
	Layers int
}

func encodeTestPattern(
	ctx context.Context,
	factory rtcencoder.VideoEncoderFactory,
	formats []rtcencoder.SDPVideoFormat,
	params testPatternParams,
) (_err error) {
	logger.Debugf(ctx, "encodeTestPattern(ctx, %#+v)", params)
	defer func() { logger.Debugf(ctx, "/encodeTestPattern(ctx, %#+v): %v", params, _err) }()

	var format *rtcencoder.SDPVideoFormat
	for idx := range formats {
		if formats[idx].Name.Equal(params.Codec) {
			format = &formats[idx]
			break
		}
	}
	if format == nil {
		return fmt.Errorf("%w: %s is not among the supported formats", rtcencoder.ErrUnsupportedFormat, params.Codec)
	}

	encoder, err := factory.CreateVideoEncoder(ctx, *format)
	if err != nil {
		return fmt.Errorf("unable to create an encoder for %s: %w", format, err)
	}
	defer func() {
		if err := encoder.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the encoder: %v", err)
		}
	}()

	const framerate = 30
	settings := rtcencoder.CodecSettings{
		Codec:            format.Name,
		Width:            params.Width,
		Height:           params.Height,
		MaxFramerate:     framerate,
		StartBitrate:     2_000_000,
		MaxBitrate:       4_000_000,
		KeyFrameInterval: framerate * 2,
	}
	for idx := params.Layers - 1; params.Layers > 1 && idx >= 0; idx-- {
		divider := 1 << idx
		settings.SimulcastStreams = append(settings.SimulcastStreams, rtcencoder.SimulcastStream{
			Width:         params.Width / divider,
			Height:        params.Height / divider,
			MaxFramerate:  framerate,
			TargetBitrate: settings.StartBitrate / uint64(divider*divider),
			MaxBitrate:    settings.MaxBitrate / uint64(divider*divider),
			Active:        true,
		})
	}
	if err := encoder.InitEncode(ctx, settings); err != nil {
		return fmt.Errorf("unable to initialize the encoder: %w", err)
	}

	var totalBytes, keyFrames int
	encoder.RegisterEncodeCompleteCallback(func(ctx context.Context, img rtcencoder.EncodedImage) error {
		totalBytes += len(img.Data)
		if img.IsKeyFrame {
			keyFrames++
		}
		fmt.Printf("layer:%d %dx%d ts:%v key:%t size:%d\n",
			img.SimulcastIndex, img.Width, img.Height, img.Timestamp, img.IsKeyFrame, len(img.Data))
		return nil
	})

	info := encoder.GetEncoderInfo()
	fmt.Printf("encoder: %s (hardware: %t)\n", info.ImplementationName, info.IsHardwareAccelerated)

	startedAt := time.Now()
	for idx := 0; idx < params.Frames; idx++ {
		frame := rtcencoder.VideoFrame{
			Image:     newTestPattern(params.Width, params.Height, idx),
			Timestamp: time.Duration(idx) * time.Second / framerate,
		}
		if err := encoder.Encode(ctx, frame, false); err != nil {
			return fmt.Errorf("unable to encode frame #%d: %w", idx, err)
		}
	}
	fmt.Printf("encoded %d frames in %v: %d bytes, %d key frames\n", params.Frames, time.Since(startedAt), totalBytes, keyFrames)
	return nil
}
