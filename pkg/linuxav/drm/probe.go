//go:build linux

package drm

import (
	"fmt"
	"log/slog"
)

// Probe opens path and reads every connector with its modes. Connectors
// that cannot be read are skipped.
func Probe(path string) ([]ConnectorInfo, error) {
	card, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer card.Close()

	if err := card.SetClientCapability(ClientCapUniversalPlanes, 1); err != nil {
		slog.With("component", "linuxav").Debug("universal planes unavailable", "path", path, "error", err)
	}

	res, err := card.Resources()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	planes, err := card.PlaneResources()
	if err != nil {
		slog.With("component", "linuxav").Debug("failed to read plane resources", "path", path, "error", err)
	}

	infos := make([]ConnectorInfo, 0, len(res.Connectors))
	for _, id := range res.Connectors {
		conn, err := card.Connector(id)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to read connector", "id", id, "error", err)
			continue
		}
		infos = append(infos, ConnectorInfo{
			Connector: *conn,
			CRTCs:     len(res.CRTCs),
			Planes:    len(planes),
		})
	}
	return infos, nil
}
