package models

import (
	"encoding/json"
	"fmt"
)

// Manifest is the add-on manifest served to Stremio clients.
// Optional blocks are pointers with omitempty so they disappear from the
// JSON instead of being rendered as null.
type Manifest struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	Description   string         `json:"description"`
	Types         []string       `json:"types"`
	Resources     []Resource     `json:"resources"`
	IDPrefixes    []string       `json:"idPrefixes"`
	Catalogs      []Catalog      `json:"catalogs"`
	AddonCatalogs []AddonCatalog `json:"addonCatalogs"`
	Background    string         `json:"background,omitempty"`
	Logo          string         `json:"logo,omitempty"`
	BehaviorHints BehaviorHints  `json:"behaviorHints"`

	StremioAddonsConfig *AddonsConfig `json:"stremioAddonsConfig,omitempty"`
}

type BehaviorHints struct {
	Configurable          bool `json:"configurable"`
	ConfigurationRequired bool `json:"configurationRequired"`
}

// AddonsConfig is the signed-config block used by third parties to verify
// where a configuration came from.
type AddonsConfig struct {
	Issuer    string `json:"issuer"`
	Signature string `json:"signature"`
}

type Catalog struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra []CatalogExtra `json:"extra,omitempty"`
}

type CatalogExtra struct {
	Name       string   `json:"name"`
	IsRequired bool     `json:"isRequired,omitempty"`
	Options    []string `json:"options,omitempty"`
}

type AddonCatalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resource is either a short resource name ("stream") or a full object
// restricting the resource to some types and id prefixes. The protocol
// accepts both shapes, so Resource round-trips whichever one it was given.
type Resource struct {
	Name       string
	Types      []string
	IDPrefixes []string
}

// IsShort reports whether the resource carries no type or prefix restrictions.
func (r Resource) IsShort() bool {
	return len(r.Types) == 0 && len(r.IDPrefixes) == 0
}

type resourceObject struct {
	Name       string   `json:"name"`
	Types      []string `json:"types,omitempty"`
	IDPrefixes []string `json:"idPrefixes,omitempty"`
}

func (r Resource) MarshalJSON() ([]byte, error) {
	if r.IsShort() {
		return json.Marshal(r.Name)
	}
	return json.Marshal(resourceObject{Name: r.Name, Types: r.Types, IDPrefixes: r.IDPrefixes})
}

func (r *Resource) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*r = Resource{Name: name}
		return nil
	}

	var obj resourceObject
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("decode resource: %w", err)
	}
	if obj.Name == "" {
		return fmt.Errorf("decode resource: missing name")
	}
	*r = Resource{Name: obj.Name, Types: obj.Types, IDPrefixes: obj.IDPrefixes}
	return nil
}
