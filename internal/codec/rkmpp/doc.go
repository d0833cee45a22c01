// Package rkmpp implements codec.Backend on the Rockchip Media Process
// Platform (librockchip_mpp).
//
// The cgo implementation is only compiled on linux with the rkmpp build
// tag:
//
//	go build -tags rkmpp ./...
//
// Other builds get a Backend whose methods return codec.ErrUnavailable so
// the rest of the module still links on development machines.
package rkmpp

// Name is reported by Backend.Name.
const Name = "rkmpp"
