// Package mediadevices provides software encoders built on
// github.com/pion/mediadevices (cgo bindings to libvpx and x264).
//
// It requires the "with_mediadevices" build tag; without it Engines
// returns nothing.
package mediadevices
