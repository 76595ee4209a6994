// Package manifest builds and serves the add-on manifest.
package manifest

import (
	"fmt"

	"aiostreams/internal/engine"
	"aiostreams/internal/userconfig"
	"aiostreams/pkg/models"
	"aiostreams/pkg/utils"
)

const (
	// uuidSuffixLen is how much of a user's uuid goes into the manifest id.
	uuidSuffixLen = 12

	fallbackVersion = "0.0.0"
)

var (
	supportedTypes = []string{"movie", "series"}
	idPrefixes     = []string{"tt"}
)

// Synthesize assembles the manifest for cfg. snap holds the engine output
// for a Configured cfg and is ignored for Anonymous. It does no I/O.
func Synthesize(s *utils.Settings, cfg userconfig.Config, snap *engine.Snapshot) models.Manifest {
	m := models.Manifest{
		ID:            s.AddonID,
		Name:          s.AddonName,
		Version:       normalizeVersion(s.Version),
		Description:   s.Description,
		Types:         append([]string{}, supportedTypes...),
		IDPrefixes:    append([]string{}, idPrefixes...),
		Resources:     []models.Resource{},
		Catalogs:      []models.Catalog{},
		AddonCatalogs: []models.AddonCatalog{},
		Background:    s.Background,
		Logo:          s.Logo,
		BehaviorHints: models.BehaviorHints{Configurable: true},
	}

	switch c := cfg.(type) {
	case userconfig.Anonymous:
		m.BehaviorHints.ConfigurationRequired = true
	case userconfig.Configured:
		if c.Data.UUID != "" {
			m.ID += "." + truncate(c.Data.UUID, uuidSuffixLen)
		}
		m.Name = override(c.Data.AddonName, s.AddonName)
		m.Description = override(c.Data.AddonDescription, s.Description)
		m.Background = override(c.Data.AddonBackground, s.Background)
		m.Logo = override(c.Data.AddonLogo, s.Logo)
		m.Resources = snap.Resources()
		m.Catalogs = snap.Catalogs()
		m.AddonCatalogs = snap.AddonCatalogs()
	default:
		panic(fmt.Sprintf("manifest: unknown config variant %T", cfg))
	}

	if s.HasAddonsConfig() {
		m.StremioAddonsConfig = &models.AddonsConfig{
			Issuer:    s.AddonsConfigIssuer,
			Signature: s.AddonsConfigSignature,
		}
	}
	return m
}

func normalizeVersion(v string) string {
	if v == "" || v == utils.UnknownVersion {
		return fallbackVersion
	}
	return v
}

func override(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
