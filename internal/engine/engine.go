// Package engine computes a user's catalogs and resources from the
// manifests of their upstream add-ons.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aiostreams/pkg/models"
)

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks aiostreams/internal/engine Engine

// Engine builds the aggregated view of a configuration. A Snapshot is only
// returned once all upstream work is done.
type Engine interface {
	Build(ctx context.Context, data models.UserData) (*Snapshot, error)
}

// Snapshot is the immutable result of a build.
type Snapshot struct {
	catalogs      []models.Catalog
	resources     []models.Resource
	addonCatalogs []models.AddonCatalog
}

func NewSnapshot(catalogs []models.Catalog, resources []models.Resource, addonCatalogs []models.AddonCatalog) *Snapshot {
	return &Snapshot{
		catalogs:      append([]models.Catalog{}, catalogs...),
		resources:     append([]models.Resource{}, resources...),
		addonCatalogs: append([]models.AddonCatalog{}, addonCatalogs...),
	}
}

// Catalogs returns a copy of the catalogs; never nil.
func (s *Snapshot) Catalogs() []models.Catalog {
	if s == nil {
		return []models.Catalog{}
	}
	return append([]models.Catalog{}, s.catalogs...)
}

// Resources returns a copy of the resources; never nil.
func (s *Snapshot) Resources() []models.Resource {
	if s == nil {
		return []models.Resource{}
	}
	return append([]models.Resource{}, s.resources...)
}

// AddonCatalogs returns a copy of the addon catalogs; never nil.
func (s *Snapshot) AddonCatalogs() []models.AddonCatalog {
	if s == nil {
		return []models.AddonCatalog{}
	}
	return append([]models.AddonCatalog{}, s.addonCatalogs...)
}

// Aggregator is the Engine backed by upstream add-on manifests.
type Aggregator struct {
	Source      ManifestSource
	Parallelism int
	Logger      *zap.Logger
}

func NewAggregator(source ManifestSource, logger *zap.Logger) *Aggregator {
	return &Aggregator{Source: source, Parallelism: 4, Logger: logger}
}

// Build fetches every enabled upstream manifest and merges them in
// configuration order. Any failing add-on fails the whole build.
func (a *Aggregator) Build(ctx context.Context, data models.UserData) (*Snapshot, error) {
	enabled := data.EnabledAddons()
	if len(enabled) == 0 {
		return NewSnapshot(nil, nil, nil), nil
	}

	manifests := make([]*models.Manifest, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.Parallelism, 1))

	for i, addon := range enabled {
		g.Go(func() error {
			m, err := a.Source.FetchManifest(gctx, addon.ManifestURL)
			if err != nil {
				return fmt.Errorf("addon %s: %w", addon.Name, err)
			}
			manifests[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build engine snapshot: %w", err)
	}

	a.Logger.Debug("fetched upstream manifests",
		zap.String("uuid", data.UUID),
		zap.Int("addons", len(enabled)))

	return merge(enabled, manifests), nil
}

func merge(addons []models.UpstreamAddon, manifests []*models.Manifest) *Snapshot {
	var (
		catalogs      []models.Catalog
		addonCatalogs []models.AddonCatalog
		resources     []models.Resource
		byName        = make(map[string]int)
	)

	for i, m := range manifests {
		prefix := addonKey(addons[i])

		for _, r := range m.Resources {
			idx, ok := byName[r.Name]
			if !ok {
				byName[r.Name] = len(resources)
				resources = append(resources, cloneResource(r))
				continue
			}
			resources[idx] = mergeResource(resources[idx], r)
		}

		for _, c := range m.Catalogs {
			c.ID = prefix + "." + c.ID
			c.Extra = append([]models.CatalogExtra(nil), c.Extra...)
			catalogs = append(catalogs, c)
		}

		for _, ac := range m.AddonCatalogs {
			ac.ID = prefix + "." + ac.ID
			addonCatalogs = append(addonCatalogs, ac)
		}
	}

	if _, ok := byName["stream"]; !ok {
		resources = append([]models.Resource{{Name: "stream"}}, resources...)
	}

	return NewSnapshot(catalogs, resources, addonCatalogs)
}

// addonKey is a short stable id for an upstream add-on, used to keep catalog
// ids from different add-ons apart even when the user reorders them.
func addonKey(a models.UpstreamAddon) string {
	sum := sha256.Sum256([]byte(a.ManifestURL))
	return hex.EncodeToString(sum[:])[:8]
}

// mergeResource combines two declarations of the same resource. A short
// resource is unrestricted, so it absorbs any restricted one.
func mergeResource(base, incoming models.Resource) models.Resource {
	if base.IsShort() || incoming.IsShort() {
		return models.Resource{Name: base.Name}
	}
	base.Types = mergeStringSlices(base.Types, incoming.Types)
	base.IDPrefixes = mergeStringSlices(base.IDPrefixes, incoming.IDPrefixes)
	return base
}

func cloneResource(r models.Resource) models.Resource {
	r.Types = append([]string(nil), r.Types...)
	r.IDPrefixes = append([]string(nil), r.IDPrefixes...)
	return r
}

func appendIfMissing(slice []string, v string) []string {
	for _, x := range slice {
		if x == v {
			return slice
		}
	}
	return append(slice, v)
}

func mergeStringSlices(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	for _, v := range b {
		out = appendIfMissing(out, v)
	}
	return out
}
