package models

// UserData is a user's add-on configuration. Display fields override the
// service defaults when set; Addons is consumed by the aggregation engine.
type UserData struct {
	UUID             string          `json:"uuid,omitempty" validate:"omitempty,max=64"`
	AddonName        string          `json:"addonName,omitempty" validate:"omitempty,max=64"`
	AddonDescription string          `json:"addonDescription,omitempty" validate:"omitempty,max=512"`
	AddonBackground  string          `json:"addonBackground,omitempty" validate:"omitempty,http_url"`
	AddonLogo        string          `json:"addonLogo,omitempty" validate:"omitempty,http_url"`
	Addons           []UpstreamAddon `json:"addons,omitempty" validate:"max=50,dive"`
}

// UpstreamAddon is another Stremio add-on whose manifest gets merged into ours.
type UpstreamAddon struct {
	Name        string `json:"name" validate:"required,max=64"`
	ManifestURL string `json:"manifestUrl" validate:"required,http_url"`
	Enabled     bool   `json:"enabled"`
}

// EnabledAddons returns the enabled upstream add-ons in configuration order.
func (u UserData) EnabledAddons() []UpstreamAddon {
	out := make([]UpstreamAddon, 0, len(u.Addons))
	for _, a := range u.Addons {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}
