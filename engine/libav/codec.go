//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"
	"math"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtcencoder"
)

type codec struct {
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	closer       astikit.Closer
}

func (c *codec) Close() error {
	return c.closer.Close()
}

func findEncoder(names []string) (*astiav.Codec, string) {
	for _, name := range names {
		if c := astiav.FindEncoderByName(name); c != nil {
			return c, name
		}
	}
	return nil, ""
}

func openHardwareDevice(
	deviceTypeName HardwareDeviceTypeName,
	deviceName string,
) (*astiav.HardwareDeviceContext, error) {
	deviceType := astiav.FindHardwareDeviceTypeByName(string(deviceTypeName))
	if deviceType == astiav.HardwareDeviceTypeNone {
		return nil, fmt.Errorf("hardware device type '%s' is not known to libav", deviceTypeName)
	}

	hardwareDeviceContext, err := astiav.CreateHardwareDeviceContext(deviceType, deviceName, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to create hardware device context '%s' for '%s': %w", deviceName, deviceTypeName, err)
	}
	return hardwareDeviceContext, nil
}

// probeHardwareDevice checks that the hardware device can be opened.
func probeHardwareDevice(
	ctx context.Context,
	deviceTypeName HardwareDeviceTypeName,
	deviceName string,
) error {
	if deviceTypeName == HardwareDeviceTypeNameNone {
		return nil
	}

	hardwareDeviceContext, err := openHardwareDevice(deviceTypeName, deviceName)
	if err != nil {
		return err
	}
	hardwareDeviceContext.Free()
	logger.Tracef(ctx, "hardware device '%s' of type '%s' is available", deviceName, deviceTypeName)
	return nil
}

func newCodec(
	ctx context.Context,
	cfg codecConfig,
	settings rtcencoder.CodecSettings,
) (_ret *codec, _err error) {
	c := &codec{}
	defer func() {
		if _err != nil {
			_ = c.Close()
		}
	}()

	c.codec = astiav.FindEncoderByName(cfg.EncoderName)
	if c.codec == nil {
		return nil, fmt.Errorf("unable to find an encoder using name '%s'", cfg.EncoderName)
	}

	c.codecContext = astiav.AllocCodecContext(c.codec)
	if c.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}
	c.closer.Add(c.codecContext.Free)

	c.codecContext.SetWidth(settings.Width)
	c.codecContext.SetHeight(settings.Height)
	c.codecContext.SetPixelFormat(astiav.PixelFormatYuv420P)
	c.codecContext.SetTimeBase(astiav.NewRational(1, rtpClockRate))
	if settings.MaxFramerate > 0 {
		c.codecContext.SetFramerate(astiav.NewRational(int(math.Round(settings.MaxFramerate*1000)), 1000))
	}
	if bitrate := startBitrate(settings); bitrate > 0 {
		c.codecContext.SetBitRate(int64(bitrate))
	}
	if settings.KeyFrameInterval > 0 {
		c.codecContext.SetGopSize(settings.KeyFrameInterval)
	}

	if cfg.HardwareDeviceTypeName != HardwareDeviceTypeNameNone {
		logger.Debugf(ctx, "encoder '%s' uses %s device '%s'", cfg.EncoderName, cfg.HardwareDeviceTypeName, cfg.HardwareDeviceName)
		hardwareDeviceContext, err := openHardwareDevice(cfg.HardwareDeviceTypeName, cfg.HardwareDeviceName)
		if err != nil {
			return nil, err
		}
		c.closer.Add(hardwareDeviceContext.Free)
		c.codecContext.SetHardwareDeviceContext(hardwareDeviceContext)
	}

	var dict *astiav.Dictionary
	if len(cfg.Options) > 0 {
		dict = astiav.NewDictionary()
		c.closer.Add(dict.Free)
		for _, opt := range cfg.Options {
			logger.Debugf(ctx, "encoder '%s' option: %s=%s", cfg.EncoderName, opt.Key, opt.Value)
			if err := dict.Set(opt.Key, opt.Value, 0); err != nil {
				return nil, fmt.Errorf("unable to set option '%s' to '%s': %w", opt.Key, opt.Value, err)
			}
		}
	}

	if err := c.codecContext.Open(c.codec, dict); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}

	return c, nil
}

func startBitrate(settings rtcencoder.CodecSettings) uint64 {
	bitrate := settings.StartBitrate
	if bitrate == 0 {
		bitrate = settings.MaxBitrate
	}
	if settings.MaxBitrate != 0 && bitrate > settings.MaxBitrate {
		bitrate = settings.MaxBitrate
	}
	if bitrate < settings.MinBitrate {
		bitrate = settings.MinBitrate
	}
	return bitrate
}
