package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/datallboy/godepot/internal/domain"
)

// CatalogFile is the JSON document accepted by `godepot catalog import`:
// apps with their depots nested underneath.
type CatalogFile struct {
	Apps []CatalogApp `json:"apps"`
}

type CatalogApp struct {
	domain.App
	Depots []domain.Depot `json:"depots"`
}

// DecodeCatalog reads a CatalogFile and flattens it for UpsertCatalog.
// Depots inherit the app id of the entry they are nested in.
func DecodeCatalog(r io.Reader) ([]domain.App, []domain.Depot, error) {
	var f CatalogFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	apps := make([]domain.App, 0, len(f.Apps))
	var depots []domain.Depot
	for i, a := range f.Apps {
		if a.AppID == 0 || a.Name == "" {
			return nil, nil, fmt.Errorf("catalog entry %d: app_id and name are required", i)
		}
		apps = append(apps, a.App)
		for _, d := range a.Depots {
			if d.DepotID == 0 {
				return nil, nil, fmt.Errorf("app %d: depot without depot_id", a.AppID)
			}
			d.AppID = a.AppID
			depots = append(depots, d)
		}
	}
	return apps, depots, nil
}
