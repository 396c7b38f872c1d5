package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/models"
)

// ConversationStore manages conversation records in conversations.json.
// Deleting a conversation also removes its uploaded files and XML logs.
type ConversationStore struct {
	layout Layout
	mu     sync.Mutex
}

// NewConversationStore returns a store over the given files layout.
func NewConversationStore(layout Layout) *ConversationStore {
	return &ConversationStore{layout: layout}
}

func (s *ConversationStore) load() ([]models.Conversation, error) {
	data, err := os.ReadFile(s.layout.ConversationsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conversation index: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var list []models.Conversation
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse conversation index: %w", err)
	}
	return list, nil
}

func (s *ConversationStore) save(list []models.Conversation) error {
	if list == nil {
		list = []models.Conversation{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation index: %w", err)
	}
	if err := os.MkdirAll(s.layout.Root, 0755); err != nil {
		return fmt.Errorf("write conversation index: %w", err)
	}
	if err := os.WriteFile(s.layout.ConversationsPath(), data, 0644); err != nil {
		return fmt.Errorf("write conversation index: %w", err)
	}
	return nil
}

// List returns all conversation records.
func (s *ConversationStore) List() ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Conversation{}
	}
	return list, nil
}

// Get returns the conversation with the given GUID.
func (s *ConversationStore) Get(guid string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return models.Conversation{}, err
	}
	for _, c := range list {
		if c.GUID == guid {
			return c, nil
		}
	}
	return models.Conversation{}, apperr.Newf(apperr.KindNotFound, "conversation %s not found", guid)
}

// Create adds a conversation record.
func (s *ConversationStore) Create(name string) (models.Conversation, error) {
	if strings.TrimSpace(name) == "" {
		return models.Conversation{}, apperr.New(apperr.KindValidation, "conversation name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return models.Conversation{}, err
	}
	conv := models.Conversation{GUID: uuid.NewString(), Name: name}
	list = append(list, conv)
	if err := s.save(list); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Rename changes a conversation's display name.
func (s *ConversationStore) Rename(guid, name string) (models.Conversation, error) {
	if strings.TrimSpace(name) == "" {
		return models.Conversation{}, apperr.New(apperr.KindValidation, "conversation name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return models.Conversation{}, err
	}
	for i, c := range list {
		if c.GUID == guid {
			list[i].Name = name
			if err := s.save(list); err != nil {
				return models.Conversation{}, err
			}
			return list[i], nil
		}
	}
	return models.Conversation{}, apperr.Newf(apperr.KindNotFound, "conversation %s not found", guid)
}

// Delete removes the record, the conversation's file directory, and both
// of its XML logs.
func (s *ConversationStore) Delete(guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return err
	}
	kept := list[:0]
	found := false
	for _, c := range list {
		if c.GUID == guid {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return apperr.Newf(apperr.KindNotFound, "conversation %s not found", guid)
	}
	if err := s.save(kept); err != nil {
		return err
	}
	if err := os.RemoveAll(s.layout.ConversationDir(guid)); err != nil {
		return fmt.Errorf("remove conversation dir: %w", err)
	}
	for _, p := range []string{s.layout.MessageLogPath(guid), s.layout.DebugLogPath(guid)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove conversation log: %w", err)
		}
	}
	return nil
}
