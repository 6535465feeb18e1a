package domain

import (
	"path"
	"strings"
)

// Chunk is a byte range of a file, addressed by the hash of its original content.
type Chunk struct {
	Offset           uint64 `json:"offset"`
	CompressedLength uint32 `json:"cb_compressed"`
	OriginalLength   uint32 `json:"cb_original"`
	SHA              Hash   `json:"sha"`
}

// Valid reports whether the chunk carries enough information to be reconciled.
func (c Chunk) Valid() bool {
	return c.OriginalLength > 0 && !c.SHA.IsZero()
}

// FileEntry is one file of a depot manifest.
type FileEntry struct {
	Filename string  `json:"filename"`
	Size     uint64  `json:"size"`
	Chunks   []Chunk `json:"chunks"`
}

// CleanName returns the slash-separated relative path for the file, or ""
// if the name is empty or would escape the destination directory.
func (f FileEntry) CleanName() string {
	name := strings.ReplaceAll(f.Filename, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return ""
	}
	name = path.Clean(name)
	if name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return ""
	}
	return name
}

// Manifest describes the files and chunks of one depot's current content.
type Manifest struct {
	AppID   uint32      `json:"app_id"`
	DepotID uint32      `json:"depot_id"`
	Name    string      `json:"name"`
	Files   []FileEntry `json:"files"`
}

// TotalSize sums the declared sizes of all files in the manifest.
func (m *Manifest) TotalSize() uint64 {
	var total uint64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// SubItemFilter decides whether a depot takes part in a transfer pass.
type SubItemFilter func(depotID uint32) bool

// AllSubItems admits every depot.
func AllSubItems(uint32) bool { return true }

// Resolution is what the catalog knows about a target: the depots eligible
// for transfer under the active filters and the directory to write into.
type Resolution struct {
	SubItemIDs         []uint32
	DestinationDirName string
}

// App is a catalog entry for an installable target.
type App struct {
	AppID  uint32 `json:"app_id"`
	Name   string `json:"name"`
	Logo   string `json:"logo"`
	DLDir  string `json:"dl_dir"`
	OSList string `json:"oses"`
	Langs  string `json:"langs"`
}

// Depot is a catalog entry for one downloadable part of an App.
type Depot struct {
	DepotID uint32 `json:"depot_id"`
	AppID   uint32 `json:"app_id"`
	Name    string `json:"name"`
	Size    uint64 `json:"size"`
	IsDLC   bool   `json:"is_dlc"`
	OSList  string `json:"oses"`
	Langs   string `json:"langs"`
}
