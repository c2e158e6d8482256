package repository

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/velatorre/crossline/internal/domain/model"
)

// catalogFile mirrors the YAML catalog layout:
//
//	races:
//	  - id: race-madrid
//	    apps:
//	      - id: app-main
//	        events:
//	          - id: evt-10k
//	            name: "10K Nocturna"
//	            competition_id: COMP-123
//	            timing_points: ["Salida", "5k", "Meta"]
//	provider_slugs:
//	  COMP-123: copernico-madrid
type catalogFile struct {
	Races []struct {
		ID   string `koanf:"id"`
		Apps []struct {
			ID     string              `koanf:"id"`
			Events []model.EventRecord `koanf:"events"`
		} `koanf:"apps"`
	} `koanf:"races"`
	ProviderSlugs map[string]string `koanf:"provider_slugs"`
}

// LoadCatalog seeds the store from a YAML catalog file. Deployments that
// point at the real document store skip this entirely.
func LoadCatalog(ctx context.Context, s *MemStore, path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}

	var cat catalogFile
	if err := k.UnmarshalWithConf("", &cat, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}

	for _, race := range cat.Races {
		for _, app := range race.Apps {
			for _, ev := range app.Events {
				s.AddEvent(race.ID, app.ID, ev)
			}
		}
	}
	for comp, slug := range cat.ProviderSlugs {
		s.SetProviderSlug(comp, slug)
	}
	return nil
}
