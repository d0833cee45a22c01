//go:build !linux

package display

import "errors"

func openDevice(string) (Device, error) {
	return nil, errors.New("DRM display output requires linux")
}
