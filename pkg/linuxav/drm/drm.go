// Package drm provides pure Go bindings to the subset of the Linux DRM/KMS
// API needed to scan out a single dumb buffer on a display plane.
//
// This package does not use cgo; every call is a raw ioctl through
// golang.org/x/sys/unix.
//
// # Probing
//
// List connectors and their advertised modes:
//
//	conns, err := drm.Probe("/dev/dri/card0")
//	for _, c := range conns {
//	    fmt.Println(c.Name(), c.Connection, len(c.Modes))
//	}
//
// # Scanout
//
// The usual sequence is: check CapDumbBuffer, enable universal planes,
// read Resources and a Connector, CreateDumb + MapDumb + Mmap, AddFB2,
// then SetCrtc and SetPlane. Release in reverse order.
package drm
