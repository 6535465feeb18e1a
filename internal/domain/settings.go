package domain

// Settings is a read-only snapshot of the user's transfer settings.
type Settings struct {
	OSFilters       []string `json:"os_list"`
	LanguageFilters []string `json:"languages"`
	BaseDownloadDir string   `json:"download_location"`
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (s Settings) Clone() Settings {
	out := Settings{BaseDownloadDir: s.BaseDownloadDir}
	out.OSFilters = append([]string(nil), s.OSFilters...)
	out.LanguageFilters = append([]string(nil), s.LanguageFilters...)
	return out
}
