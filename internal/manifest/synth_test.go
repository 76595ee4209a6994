package manifest

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiostreams/internal/engine"
	"aiostreams/internal/userconfig"
	"aiostreams/pkg/models"
	"aiostreams/pkg/utils"
)

func baseSettings() *utils.Settings {
	return &utils.Settings{
		AddonID:     "aio",
		AddonName:   "AIO",
		Version:     "unknown",
		Description: "default description",
		Background:  "https://example.com/bg.png",
		Logo:        "https://example.com/logo.png",
	}
}

func sampleSnapshot() *engine.Snapshot {
	return engine.NewSnapshot(
		[]models.Catalog{{Type: "movie", ID: "abc.top", Name: "Top"}},
		[]models.Resource{{Name: "stream"}, {Name: "catalog"}},
		[]models.AddonCatalog{{Type: "other", ID: "abc.all", Name: "All"}},
	)
}

func TestSynthesizeAnonymousScenario(t *testing.T) {
	t.Parallel()

	m := Synthesize(baseSettings(), userconfig.Anonymous{}, nil)

	assert.Equal(t, "aio", m.ID)
	assert.Equal(t, "AIO", m.Name)
	assert.Equal(t, "0.0.0", m.Version)
	assert.True(t, m.BehaviorHints.Configurable)
	assert.True(t, m.BehaviorHints.ConfigurationRequired)
	assert.Equal(t, []models.Catalog{}, m.Catalogs)
	assert.Equal(t, []models.Resource{}, m.Resources)
	assert.Equal(t, []models.AddonCatalog{}, m.AddonCatalogs)
	assert.Nil(t, m.StremioAddonsConfig)
}

func TestSynthesizeAnonymousIgnoresSnapshot(t *testing.T) {
	t.Parallel()

	m := Synthesize(baseSettings(), userconfig.Anonymous{}, sampleSnapshot())
	assert.Empty(t, m.Catalogs)
	assert.Empty(t, m.Resources)
	assert.Empty(t, m.AddonCatalogs)
}

func TestSynthesizeAnonymousSerializesEmptyArrays(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Synthesize(baseSettings(), userconfig.Anonymous{}, nil))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.JSONEq(t, `[]`, string(raw["catalogs"]))
	assert.JSONEq(t, `[]`, string(raw["resources"]))
	assert.JSONEq(t, `[]`, string(raw["addonCatalogs"]))
	assert.JSONEq(t, `["movie","series"]`, string(raw["types"]))
	assert.JSONEq(t, `["tt"]`, string(raw["idPrefixes"]))
	_, present := raw["stremioAddonsConfig"]
	assert.False(t, present)
}

func TestSynthesizeConfiguredUsesOverridesAndSnapshot(t *testing.T) {
	t.Parallel()

	cfg := userconfig.Configured{Data: models.UserData{
		UUID:             "abcdefghijklmnop",
		AddonName:        "Mine",
		AddonDescription: "my description",
		AddonLogo:        "https://example.com/mine.png",
	}}
	m := Synthesize(baseSettings(), cfg, sampleSnapshot())

	assert.Equal(t, "aio.abcdefghijkl", m.ID)
	assert.True(t, strings.HasSuffix(m.ID, ".abcdefghijkl"))
	assert.NotContains(t, m.ID, "mnop")
	assert.Equal(t, "Mine", m.Name)
	assert.Equal(t, "my description", m.Description)
	assert.Equal(t, "https://example.com/mine.png", m.Logo)
	assert.Equal(t, "https://example.com/bg.png", m.Background)
	assert.False(t, m.BehaviorHints.ConfigurationRequired)
	assert.True(t, m.BehaviorHints.Configurable)
	assert.Len(t, m.Catalogs, 1)
	assert.Len(t, m.Resources, 2)
	assert.Len(t, m.AddonCatalogs, 1)
}

func TestSynthesizeIDSuffix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		uuid string
		want string
	}{
		{name: "no uuid", uuid: "", want: "aio"},
		{name: "short uuid", uuid: "abc", want: "aio.abc"},
		{name: "exact", uuid: "123456789012", want: "aio.123456789012"},
		{name: "full uuid", uuid: "0f8fad5b-d9cb-469f-a165-70867728950e", want: "aio.0f8fad5b-d9c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := Synthesize(baseSettings(), userconfig.Configured{Data: models.UserData{UUID: tt.uuid}}, sampleSnapshot())
			assert.Equal(t, tt.want, m.ID)
		})
	}
}

func TestSynthesizeVersion(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]string{
		"unknown": "0.0.0",
		"":        "0.0.0",
		"2.3.1":   "2.3.1",
	} {
		s := baseSettings()
		s.Version = raw
		assert.Equal(t, want, Synthesize(s, userconfig.Anonymous{}, nil).Version, raw)
	}
}

func TestSynthesizeAddonsConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		issuer    string
		signature string
		present   bool
	}{
		{name: "both set", issuer: "https://stremio-addons.net", signature: "sig", present: true},
		{name: "issuer only", issuer: "https://stremio-addons.net"},
		{name: "signature only", signature: "sig"},
		{name: "neither"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := baseSettings()
			s.AddonsConfigIssuer = tt.issuer
			s.AddonsConfigSignature = tt.signature

			for _, cfg := range []userconfig.Config{userconfig.Anonymous{}, userconfig.Configured{}} {
				m := Synthesize(s, cfg, sampleSnapshot())
				b, err := json.Marshal(m)
				require.NoError(t, err)

				var raw map[string]json.RawMessage
				require.NoError(t, json.Unmarshal(b, &raw))
				_, present := raw["stremioAddonsConfig"]
				assert.Equal(t, tt.present, present)
				if tt.present {
					assert.JSONEq(t, `{"issuer":"https://stremio-addons.net","signature":"sig"}`, string(raw["stremioAddonsConfig"]))
				}
			}
		})
	}
}

func TestSynthesizeConstantsIgnoreConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []userconfig.Config{userconfig.Anonymous{}, userconfig.Configured{Data: models.UserData{UUID: "x"}}} {
		m := Synthesize(baseSettings(), cfg, sampleSnapshot())
		assert.Equal(t, []string{"movie", "series"}, m.Types)
		assert.Equal(t, []string{"tt"}, m.IDPrefixes)
	}
}

func TestSynthesizeUUIDSuffixCountsCharacters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		uuid string
		want string
	}{
		{name: "multibyte", uuid: "a" + strings.Repeat("é", 14), want: "aio.a" + strings.Repeat("é", 11)},
		{name: "short multibyte", uuid: "ünï", want: "aio.ünï"},
		{name: "exactly twelve", uuid: "日本語日本語日本語日本語", want: "aio.日本語日本語日本語日本語"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := Synthesize(baseSettings(), userconfig.Configured{Data: models.UserData{UUID: tt.uuid}}, engine.NewSnapshot(nil, nil, nil))
			assert.Equal(t, tt.want, m.ID)
			assert.True(t, utf8.ValidString(m.ID))

			b, err := json.Marshal(m)
			require.NoError(t, err)
			assert.NotContains(t, string(b), "\uFFFD")
		})
	}
}
