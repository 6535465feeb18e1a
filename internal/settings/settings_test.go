package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("settings file is not JSON: %v\n%s", err, b)
	}
	return m
}

func TestOpenCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "settings.json")
	downloads := filepath.Join(dir, "dl")

	s, err := Open(path, downloads, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	snap := s.Snapshot()
	if snap.BaseDownloadDir != downloads {
		t.Errorf("download dir = %q, want %q", snap.BaseDownloadDir, downloads)
	}
	if !reflect.DeepEqual(snap.OSFilters, []string{"windows"}) {
		t.Errorf("os filters = %v", snap.OSFilters)
	}
	if !reflect.DeepEqual(snap.LanguageFilters, []string{"english"}) {
		t.Errorf("language filters = %v", snap.LanguageFilters)
	}

	m := readJSON(t, path)
	if m[KeyDownloadLocation] != downloads {
		t.Errorf("file download_location = %v", m[KeyDownloadLocation])
	}
}

func TestOpenRelativeDefault(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.Abs(DefaultDownloadLocation)
	if got := s.Snapshot().BaseDownloadDir; got != want {
		t.Fatalf("download dir = %q, want %q", got, want)
	}
}

func TestOpenExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"download_location": "/srv/games", "os_list": ["linux", "macos"], "languages": ["german"]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.BaseDownloadDir != "/srv/games" || !reflect.DeepEqual(snap.OSFilters, []string{"linux", "macos"}) {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestUpdateMergesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	s, err := Open(path, filepath.Join(dir, "dl"), nil)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Update(map[string]any{
		"os_list": []any{"windows", "linux"},
		"theme":   "dark",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap := s.Snapshot()
	if !reflect.DeepEqual(snap.OSFilters, []string{"windows", "linux"}) {
		t.Errorf("os filters = %v", snap.OSFilters)
	}
	if !reflect.DeepEqual(snap.LanguageFilters, []string{"english"}) {
		t.Errorf("languages changed: %v", snap.LanguageFilters)
	}

	reopened, err := Open(path, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(reopened.Snapshot(), snap) {
		t.Errorf("reopened = %+v, want %+v", reopened.Snapshot(), snap)
	}
	if readJSON(t, path)["theme"] != "dark" {
		t.Error("unknown key was not kept")
	}
}

func TestUpdateRejectsBadValues(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	before := s.Snapshot()

	bad := []map[string]any{
		{"download_location": ""},
		{"download_location": 5},
		{"os_list": 3},
		{"languages": []any{"english", 2}},
	}
	for _, values := range bad {
		if err := s.Update(values); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Update(%v) = %v, want ErrInvalidValue", values, err)
		}
	}
	if !reflect.DeepEqual(s.Snapshot(), before) {
		t.Error("rejected update changed the settings")
	}
}

func TestStringListFromCommaString(t *testing.T) {
	got, err := stringList("windows, linux,,macos")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"windows", "linux", "macos"}) {
		t.Fatalf("got %v", got)
	}
}

func TestWatchReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path, "/srv/a", nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Watch()

	content := `{"download_location": "/srv/b", "os_list": ["linux"], "languages": ["english"]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Snapshot().BaseDownloadDir == "/srv/b" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("settings not reloaded: %+v", s.Snapshot())
}
