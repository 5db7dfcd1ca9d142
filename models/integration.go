package models

// Search strategies for the object store. SearchV1 looks each record up in
// the database by its JSON keys; SearchV2 preloads an Id -> row-id index at
// the start of a run and resolves lookups in memory.
const (
	SearchV1 = "v1"
	SearchV2 = "v2"
)

// Integration is the static, runtime-immutable description of a vendor.
type Integration struct {
	Vendor      string   `json:"vendor"`
	DisplayName string   `json:"display_name"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata carries per-vendor sync tuning.
type Metadata struct {
	Search            string   `json:"search"`
	ChunkSize         int      `json:"chunk_size"`
	CursorChunks      int      `json:"cursor_chunks"`
	ReadHistoryMonths int      `json:"read_history"`
	RedirectURI       string   `json:"redirect_uri"`
	ConfigurationFields []string `json:"configuration_fields"`
}

// DefaultCursorChunks bounds how many records are handed to the store per
// write, keeping memory flat regardless of vendor page sizes.
const DefaultCursorChunks = 1000

func (m Metadata) EffectiveCursorChunks() int {
	if m.CursorChunks > 0 {
		return m.CursorChunks
	}
	return DefaultCursorChunks
}

func (m Metadata) EffectiveSearch() string {
	if m.Search == "" {
		return SearchV1
	}
	return m.Search
}
