package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sipeed/picomon/pkg/config"
	"github.com/sipeed/picomon/pkg/domain/monitor"
)

func openStores(t *testing.T) map[string]MonitorStore {
	t.Helper()

	sqlite, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	jsonRepo, err := NewJSONMonitorRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONMonitorRepository: %v", err)
	}
	stores := map[string]MonitorStore{"sqlite": sqlite, "json": jsonRepo}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestInsertAssignsIdentity(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task := monitor.NewTask("g1", "c1", "m1", "minecraft", "play.example.com")

			id, err := store.Insert(ctx, task)
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if id.IsZero() || task.ID != id {
				t.Errorf("id = %q, task.ID = %q", id, task.ID)
			}
			if task.CreatedAt.IsZero() {
				t.Error("CreatedAt not set")
			}

			all, err := store.ListAll(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 1 {
				t.Fatalf("ListAll len = %d", len(all))
			}
			got := all[0]
			if got.ID != id || got.ScopeID != "g1" || got.ChannelID != "c1" || got.MessageID != "m1" ||
				got.GameType != "minecraft" || got.Host != "play.example.com" {
				t.Errorf("stored task = %+v", got)
			}
		})
	}
}

func TestInsertRejectsDuplicateHandles(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Insert(ctx, monitor.NewTask("g1", "c1", "m1", "minecraft", "a")); err != nil {
				t.Fatal(err)
			}

			_, err := store.Insert(ctx, monitor.NewTask("g2", "c1", "m1", "arma3", "b"))
			if !errors.Is(err, monitor.ErrDuplicateHandle) {
				t.Fatalf("duplicate insert err = %v, want ErrDuplicateHandle", err)
			}

			// Same channel, different message is fine.
			if _, err := store.Insert(ctx, monitor.NewTask("g1", "c1", "m2", "minecraft", "a")); err != nil {
				t.Fatalf("distinct message: %v", err)
			}
		})
	}
}

func TestScopeQueries(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, tk := range []*monitor.Task{
				monitor.NewTask("g1", "c1", "m1", "minecraft", "a"),
				monitor.NewTask("g1", "c1", "m2", "minecraft", "b"),
				monitor.NewTask("g2", "c9", "m3", "arma3", "c"),
			} {
				if _, err := store.Insert(ctx, tk); err != nil {
					t.Fatal(err)
				}
			}

			n, err := store.CountByScope(ctx, "g1")
			if err != nil || n != 2 {
				t.Errorf("CountByScope(g1) = %d, %v", n, err)
			}
			list, err := store.ListByScope(ctx, "g2")
			if err != nil || len(list) != 1 || list[0].MessageID != "m3" {
				t.Errorf("ListByScope(g2) = %+v, %v", list, err)
			}
			if n, _ := store.CountByScope(ctx, "nobody"); n != 0 {
				t.Errorf("CountByScope(nobody) = %d", n)
			}
		})
	}
}

func TestDeletesAreIdempotent(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := monitor.NewTask("g1", "c1", "m1", "minecraft", "a")
			b := monitor.NewTask("g1", "c1", "m2", "minecraft", "b")
			for _, tk := range []*monitor.Task{a, b} {
				if _, err := store.Insert(ctx, tk); err != nil {
					t.Fatal(err)
				}
			}

			for i := 0; i < 2; i++ {
				if err := store.DeleteByHandles(ctx, "c1", "m1"); err != nil {
					t.Fatalf("DeleteByHandles #%d: %v", i, err)
				}
				if err := store.DeleteByID(ctx, b.ID); err != nil {
					t.Fatalf("DeleteByID #%d: %v", i, err)
				}
			}

			if n, _ := store.CountByScope(ctx, "g1"); n != 0 {
				t.Errorf("CountByScope after deletes = %d", n)
			}
			// The handles are free again.
			if _, err := store.Insert(ctx, monitor.NewTask("g1", "c1", "m1", "minecraft", "a")); err != nil {
				t.Errorf("reinsert after delete: %v", err)
			}
		})
	}
}

func TestJSONRepositoryReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewJSONMonitorRepository(dir)
	if err != nil {
		t.Fatal(err)
	}
	task := monitor.NewTask("g1", "c1", "m1", "arma3", "1.2.3.4")
	if _, err := first.Insert(ctx, task); err != nil {
		t.Fatal(err)
	}

	second, err := NewJSONMonitorRepository(dir)
	if err != nil {
		t.Fatal(err)
	}
	all, _ := second.ListAll(ctx)
	if len(all) != 1 || all[0].ID != task.ID || all[0].Host != "1.2.3.4" {
		t.Errorf("reloaded = %+v", all)
	}
}

func TestSQLiteRepositoryPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picomon.db")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Insert(ctx, monitor.NewTask("g1", "c1", "m1", "minecraft", "a")); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if n, _ := second.CountByScope(ctx, "g1"); n != 1 {
		t.Errorf("CountByScope after reopen = %d", n)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	store, err := Open(config.StoreConfig{Driver: config.StoreJSON, DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*JSONMonitorRepository); !ok {
		t.Errorf("Open(json) = %T", store)
	}

	if _, err := Open(config.StoreConfig{Driver: "mongo"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
