package specimen

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoadMissingFileDefaults(t *testing.T) {
	s := NewStore(t.TempDir())

	rec := s.Load(9)
	if rec.Name != "Specimen 9" {
		t.Errorf("name = %q, want default \"Specimen 9\"", rec.Name)
	}
	if rec.Location != "Unknown" || rec.Collector != "Unknown" {
		t.Error("missing record should fall back to Unknown metadata")
	}
	if rec.DefaultZoom != 0 || rec.DefaultFocus != 0 || rec.DefaultRotationOffset != 0 {
		t.Error("missing record should have zero motion defaults")
	}
}

func TestStoreLoadMergesWithDefaults(t *testing.T) {
	dir := t.TempDir()
	data := `{
		"name": "Pyrite",
		"location": "Navajun, Spain",
		"default_zoom": 4200,
		"default_focus": 1800,
		"default_rotation_offset": -35
	}`
	if err := os.WriteFile(filepath.Join(dir, "specimen_2.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := NewStore(dir).Load(2)
	if rec.Name != "Pyrite" {
		t.Errorf("name = %q, want Pyrite", rec.Name)
	}
	if rec.Location != "Navajun, Spain" {
		t.Errorf("location = %q", rec.Location)
	}
	if rec.Collector != "Unknown" {
		t.Errorf("collector = %q, unset fields keep their defaults", rec.Collector)
	}
	if rec.MapImage != "placeholder.png" {
		t.Errorf("map image = %q, want placeholder", rec.MapImage)
	}
	if rec.DefaultZoom != 4200 || rec.DefaultFocus != 1800 || rec.DefaultRotationOffset != -35 {
		t.Errorf("motion defaults = %d/%d/%d, want 4200/1800/-35",
			rec.DefaultZoom, rec.DefaultFocus, rec.DefaultRotationOffset)
	}
}

func TestStoreLoadBadJSONDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "specimen_3.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := NewStore(dir).Load(3)
	if rec.Name != "Specimen 3" {
		t.Errorf("name = %q, corrupt records must yield usable defaults", rec.Name)
	}
}
