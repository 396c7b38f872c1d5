package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/models"
)

func TestGroupStoreCreateList(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	s := NewGroupStore(layout)

	g, err := s.Create("research")
	if err != nil {
		t.Fatal(err)
	}
	if g.GUID == "" || g.Name != "research" || g.CreatedAt == "" {
		t.Errorf("unexpected group: %+v", g)
	}
	if _, err := os.Stat(layout.GroupDir(g.GUID)); err != nil {
		t.Errorf("group dir not created: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].GUID != g.GUID {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestGroupStoreCreate_emptyName(t *testing.T) {
	s := NewGroupStore(Layout{Root: t.TempDir()})
	if _, err := s.Create("  "); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGroupStoreLiveCount(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	s := NewGroupStore(layout)
	g, err := s.Create("docs")
	if err != nil {
		t.Fatal(err)
	}

	dir := layout.GroupDir(g.GUID)
	for _, name := range []string{"a.txt", "b.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Internal state files are not documents.
	if err := os.WriteFile(filepath.Join(dir, "vector-store.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(g.GUID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DocumentCount != 2 {
		t.Errorf("expected live count 2, got %d", got.DocumentCount)
	}
}

func TestGroupStoreRename(t *testing.T) {
	s := NewGroupStore(Layout{Root: t.TempDir()})
	g, err := s.Create("old")
	if err != nil {
		t.Fatal(err)
	}
	renamed, err := s.Rename(g.GUID, "new")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Name != "new" {
		t.Errorf("expected renamed group, got %+v", renamed)
	}
	if _, err := s.Rename("missing", "x"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGroupStoreDelete(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	s := NewGroupStore(layout)
	g, err := s.Create("gone")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(layout.GroupDir(g.GUID), "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(g.GUID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(layout.GroupDir(g.GUID)); !os.IsNotExist(err) {
		t.Error("group dir should be removed")
	}
	if _, err := s.Get(g.GUID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := s.Delete(g.GUID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for second delete, got %v", err)
	}
}

func TestGroupStoreDelete_keepsConversationData(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	groups := NewGroupStore(layout)
	log := NewMessageLog(layout)

	g, err := groups.Create("shared")
	if err != nil {
		t.Fatal(err)
	}
	msg := models.Message{ID: "m1", Role: models.RoleUser, Content: "hi", Timestamp: 1700000000000}
	if err := log.Append("conv1", msg); err != nil {
		t.Fatal(err)
	}

	if err := groups.Delete(g.GUID); err != nil {
		t.Fatal(err)
	}
	got, err := log.List("conv1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("conversation log should survive group deletion, got %+v", got)
	}
}

func TestGroupStoreMissingIndex(t *testing.T) {
	s := NewGroupStore(Layout{Root: t.TempDir()})
	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %+v", list)
	}
}
