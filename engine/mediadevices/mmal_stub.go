//go:build with_mediadevices && !with_mmal
// +build with_mediadevices,!with_mmal

package mediadevices

func mmalEngine() *Engine {
	return nil
}
