package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/datallboy/godepot/internal/domain"
)

func newTestStore(t *testing.T) *PersistentStore {
	t.Helper()
	s, err := NewPersistentStore(filepath.Join(t.TempDir(), "db", "godepot.db"))
	if err != nil {
		t.Fatalf("NewPersistentStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const catalogJSON = `{
  "apps": [
    {"app_id": 400, "name": "Portal", "logo": "portal.jpg", "dl_dir": "Portal", "oses": "windows,macos,linux",
     "depots": [
       {"depot_id": 9,  "name": "Mac content",     "size": 100, "oses": "macos",   "langs": ""},
       {"depot_id": 10, "name": "Shared content",  "size": 200, "oses": "",        "langs": ""},
       {"depot_id": 11, "name": "Windows content", "size": 300, "oses": "windows", "langs": "english"},
       {"depot_id": 12, "name": "German audio",    "size": 50,  "oses": "windows", "langs": "german"}
     ]},
    {"app_id": 401, "name": "Portal Dedicated Server", "logo": "srv.jpg"},
    {"app_id": 402, "name": "Antichamber", "logo": ""},
    {"app_id": 403, "name": "Braid", "logo": "braid.jpg"}
  ]
}`

func seed(t *testing.T, s *PersistentStore) {
	t.Helper()
	apps, depots, err := DecodeCatalog(strings.NewReader(catalogJSON))
	if err != nil {
		t.Fatalf("DecodeCatalog: %v", err)
	}
	if err := s.UpsertCatalog(context.Background(), apps, depots); err != nil {
		t.Fatalf("UpsertCatalog: %v", err)
	}
}

func TestResolveSubItems(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name     string
		settings domain.Settings
		want     []uint32
	}{
		{"windows english", domain.Settings{OSFilters: []string{"windows"}, LanguageFilters: []string{"english"}}, []uint32{10, 11}},
		{"case insensitive", domain.Settings{OSFilters: []string{"Windows"}, LanguageFilters: []string{"ENGLISH"}}, []uint32{10, 11}},
		{"windows any language", domain.Settings{OSFilters: []string{"windows"}, LanguageFilters: []string{"english", "german"}}, []uint32{10, 11, 12}},
		{"mac", domain.Settings{OSFilters: []string{"macos"}, LanguageFilters: []string{"english"}}, []uint32{9, 10}},
		{"no filters", domain.Settings{}, []uint32{9, 10, 11, 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ResolveSubItems(ctx, 400, tt.settings)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(res.SubItemIDs, tt.want) {
				t.Errorf("depots = %v, want %v", res.SubItemIDs, tt.want)
			}
			if res.DestinationDirName != "Portal" {
				t.Errorf("dir = %q", res.DestinationDirName)
			}
		})
	}

	if _, err := s.ResolveSubItems(ctx, 999, domain.Settings{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown app err = %v", err)
	}
}

func TestListAppsHidesServersAndLogoless(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	apps, err := s.ListApps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, a := range apps {
		names = append(names, a.Name)
	}
	if !reflect.DeepEqual(names, []string{"Braid", "Portal"}) {
		t.Fatalf("apps = %v", names)
	}
}

func TestGetAppAndDepots(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	a, err := s.GetApp(ctx, 403)
	if err != nil {
		t.Fatal(err)
	}
	if a.DLDir != "Braid" {
		t.Errorf("dl_dir defaults to name, got %q", a.DLDir)
	}
	if _, err := s.GetApp(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetApp unknown = %v", err)
	}

	depots, err := s.ListDepots(ctx, 400, domain.Settings{OSFilters: []string{"windows"}, LanguageFilters: []string{"english"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(depots) != 2 || depots[1].Name != "Windows content" || depots[1].Size != 300 {
		t.Fatalf("depots = %+v", depots)
	}
}

func TestUpsertCatalogUpdates(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	err := s.UpsertCatalog(ctx,
		[]domain.App{{AppID: 403, Name: "Braid", Logo: "new.jpg", DLDir: "braid"}},
		[]domain.Depot{{DepotID: 1, AppID: 403, Name: "Main", Size: 10, IsDLC: true}})
	if err != nil {
		t.Fatal(err)
	}

	a, _ := s.GetApp(ctx, 403)
	if a.Logo != "new.jpg" || a.DLDir != "braid" {
		t.Errorf("app = %+v", a)
	}
	depots, _ := s.ListDepots(ctx, 403, domain.Settings{})
	if len(depots) != 1 || !depots[0].IsDLC {
		t.Errorf("depots = %+v", depots)
	}
}

func TestSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Unix(1700000000, 0)

	a := &domain.Schedule{ID: "a", AppID: 400, StartHour: 22, EndHour: 6, Depots: []uint32{10, 11}, CreatedAt: created}
	b := &domain.Schedule{ID: "b", AppID: 403, EndHour: 23, EndMin: 59, CreatedAt: created}
	for _, sc := range []*domain.Schedule{b, a} {
		if err := s.SaveSchedule(ctx, sc); err != nil {
			t.Fatal(err)
		}
	}

	a.AppID = 401
	if err := s.SaveSchedule(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListSchedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[0].AppID != 401 {
		t.Fatalf("schedules = %+v", got)
	}
	if !reflect.DeepEqual(got[0].Depots, []uint32{10, 11}) || got[1].Depots != nil {
		t.Errorf("depots = %v / %v", got[0].Depots, got[1].Depots)
	}
	if !got[0].CreatedAt.Equal(created) {
		t.Errorf("created = %v", got[0].CreatedAt)
	}

	if err := s.DeleteSchedule(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSchedule(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "godepot.db")
	s, err := NewPersistentStore(path)
	if err != nil {
		t.Fatal(err)
	}
	seed(t, s)
	s.Close()

	s, err = NewPersistentStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetApp(context.Background(), 400); err != nil {
		t.Fatal(err)
	}
}

func TestFilterClause(t *testing.T) {
	clause, args := FilterClause(domain.Settings{OSFilters: []string{"windows", "linux"}, LanguageFilters: []string{"english"}}, "ILIKE", DollarN, 2)
	want := "(oses ILIKE $2 OR oses ILIKE $3 OR oses = '') AND (langs ILIKE $4 OR langs = '')"
	if clause != want {
		t.Errorf("clause = %q", clause)
	}
	if !reflect.DeepEqual(args, []any{"%windows%", "%linux%", "%english%"}) {
		t.Errorf("args = %v", args)
	}

	clause, args = FilterClause(domain.Settings{}, "LIKE", QuestionMark, 1)
	if clause != "1 = 1" || args != nil {
		t.Errorf("empty filters = %q %v", clause, args)
	}
}

func TestDecodeCatalogRejectsBadEntries(t *testing.T) {
	for _, doc := range []string{
		`{"apps": [{"name": "x"}]}`,
		`{"apps": [{"app_id": 1, "name": "x", "depots": [{"name": "d"}]}]}`,
		`not json`,
	} {
		if _, _, err := DecodeCatalog(strings.NewReader(doc)); err == nil {
			t.Errorf("DecodeCatalog(%s) succeeded", doc)
		}
	}
}
