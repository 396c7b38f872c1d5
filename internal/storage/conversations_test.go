package storage

import (
	"os"
	"testing"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/models"
)

func TestConversationStoreCreateList(t *testing.T) {
	s := NewConversationStore(Layout{Root: t.TempDir()})

	c, err := s.Create("first chat")
	if err != nil {
		t.Fatal(err)
	}
	if c.GUID == "" || c.Name != "first chat" {
		t.Errorf("unexpected conversation: %+v", c)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].GUID != c.GUID {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestConversationStoreRename(t *testing.T) {
	s := NewConversationStore(Layout{Root: t.TempDir()})
	c, err := s.Create("old")
	if err != nil {
		t.Fatal(err)
	}
	renamed, err := s.Rename(c.GUID, "new")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Name != "new" {
		t.Errorf("expected renamed conversation, got %+v", renamed)
	}
}

func TestConversationStoreDelete_removesLogsAndFiles(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	s := NewConversationStore(layout)
	c, err := s.Create("doomed")
	if err != nil {
		t.Fatal(err)
	}

	log := NewMessageLog(layout)
	if err := log.Append(c.GUID, models.Message{ID: "m1", Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(layout.ConversationDir(c.GUID), 0755); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(c.GUID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(layout.MessageLogPath(c.GUID)); !os.IsNotExist(err) {
		t.Error("message log should be removed")
	}
	if _, err := os.Stat(layout.ConversationDir(c.GUID)); !os.IsNotExist(err) {
		t.Error("conversation dir should be removed")
	}
	if _, err := s.Get(c.GUID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestConversationStoreValidation(t *testing.T) {
	s := NewConversationStore(Layout{Root: t.TempDir()})
	if _, err := s.Create(""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := s.Delete("missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
