package specimen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mindatnh/scopego/internal/debug"
)

// Record holds one specimen's display metadata and stored motion
// defaults. DefaultRotationOffset (dro) is a relative tray move applied
// after the tab edge, to fine-align the specimen under the optics.
type Record struct {
	Name                  string `json:"name"`
	Location              string `json:"location"`
	Collector             string `json:"collector"`
	Chem                  string `json:"chem"`
	MapImage              string `json:"map_image"`
	EDSImage              string `json:"eds_image"`
	QRCodeImage           string `json:"qr_code_image"`
	DefaultZoom           int    `json:"default_zoom"`
	DefaultFocus          int    `json:"default_focus"`
	DefaultRotationOffset int    `json:"default_rotation_offset"`
}

// Store loads specimen records from JSON files (specimen_<n>.json).
// Load never fails: a missing or unreadable file yields a usable record
// with zero motion defaults.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load returns the record for a 1-based specimen index.
func (s *Store) Load(idx int) Record {
	rec := Record{
		Name:        fmt.Sprintf("Specimen %d", idx),
		Location:    "Unknown",
		Collector:   "Unknown",
		Chem:        "Unknown",
		MapImage:    "placeholder.png",
		EDSImage:    "placeholder.png",
		QRCodeImage: "placeholder.png",
	}

	path := filepath.Join(s.dir, fmt.Sprintf("specimen_%d.json", idx))
	data, err := os.ReadFile(path)
	if err != nil {
		debug.Verbose("specimen: %s not found, using defaults", path)
		return rec
	}

	var loaded Record
	if err := json.Unmarshal(data, &loaded); err != nil {
		debug.Error(fmt.Errorf("specimen: bad record %s: %w", path, err))
		return rec
	}

	if loaded.Name != "" {
		rec.Name = loaded.Name
	}
	if loaded.Location != "" {
		rec.Location = loaded.Location
	}
	if loaded.Collector != "" {
		rec.Collector = loaded.Collector
	}
	if loaded.Chem != "" {
		rec.Chem = loaded.Chem
	}
	if loaded.MapImage != "" {
		rec.MapImage = loaded.MapImage
	}
	if loaded.EDSImage != "" {
		rec.EDSImage = loaded.EDSImage
	}
	if loaded.QRCodeImage != "" {
		rec.QRCodeImage = loaded.QRCodeImage
	}
	rec.DefaultZoom = loaded.DefaultZoom
	rec.DefaultFocus = loaded.DefaultFocus
	rec.DefaultRotationOffset = loaded.DefaultRotationOffset

	debug.Info("specimen: loaded %s -> zoom=%d focus=%d offset=%d",
		path, rec.DefaultZoom, rec.DefaultFocus, rec.DefaultRotationOffset)
	return rec
}
