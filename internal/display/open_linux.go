//go:build linux

package display

import "github.com/smazurov/hwvideo/pkg/linuxav/drm"

func openDevice(path string) (Device, error) {
	card, err := drm.Open(path)
	if err != nil {
		return nil, err
	}
	return card, nil
}
