package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/models"
)

// groupsFile is the on-disk shape of document-groups.json.
type groupsFile struct {
	Groups []models.DocumentGroup `json:"groups"`
}

// GroupStore manages document group records and their upload directories.
// DocumentCount in returned records is always counted live from the group
// directory; the persisted counter is maintained only so other readers of
// the file see a sane value.
type GroupStore struct {
	layout Layout
	mu     sync.Mutex
}

// NewGroupStore returns a store over the given files layout.
func NewGroupStore(layout Layout) *GroupStore {
	return &GroupStore{layout: layout}
}

func (s *GroupStore) load() (groupsFile, error) {
	var file groupsFile
	data, err := os.ReadFile(s.layout.GroupsIndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("read group index: %w", err)
	}
	if len(data) == 0 {
		return file, nil
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse group index: %w", err)
	}
	return file, nil
}

func (s *GroupStore) save(file groupsFile) error {
	if file.Groups == nil {
		file.Groups = []models.DocumentGroup{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode group index: %w", err)
	}
	if err := os.MkdirAll(s.layout.Root, 0755); err != nil {
		return fmt.Errorf("write group index: %w", err)
	}
	if err := os.WriteFile(s.layout.GroupsIndexPath(), data, 0644); err != nil {
		return fmt.Errorf("write group index: %w", err)
	}
	return nil
}

// countDocuments counts uploaded files in a group directory, skipping
// internal JSON state files and subdirectories.
func (s *GroupStore) countDocuments(groupID string) int {
	entries, err := os.ReadDir(s.layout.GroupDir(groupID))
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		n++
	}
	return n
}

// List returns all groups with live document counts.
func (s *GroupStore) List() ([]models.DocumentGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.DocumentGroup, len(file.Groups))
	for i, g := range file.Groups {
		g.DocumentCount = s.countDocuments(g.GUID)
		out[i] = g
	}
	return out, nil
}

// Get returns the group with the given GUID.
func (s *GroupStore) Get(guid string) (models.DocumentGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return models.DocumentGroup{}, err
	}
	for _, g := range file.Groups {
		if g.GUID == guid {
			g.DocumentCount = s.countDocuments(g.GUID)
			return g, nil
		}
	}
	return models.DocumentGroup{}, apperr.Newf(apperr.KindNotFound, "document group %s not found", guid)
}

// Create adds a group record and its upload directory.
func (s *GroupStore) Create(name string) (models.DocumentGroup, error) {
	if strings.TrimSpace(name) == "" {
		return models.DocumentGroup{}, apperr.New(apperr.KindValidation, "group name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return models.DocumentGroup{}, err
	}
	group := models.DocumentGroup{
		GUID:      uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	file.Groups = append(file.Groups, group)
	if err := s.save(file); err != nil {
		return models.DocumentGroup{}, err
	}
	if err := os.MkdirAll(s.layout.GroupDir(group.GUID), 0755); err != nil {
		return models.DocumentGroup{}, fmt.Errorf("create group dir: %w", err)
	}
	return group, nil
}

// Rename changes a group's display name.
func (s *GroupStore) Rename(guid, name string) (models.DocumentGroup, error) {
	if strings.TrimSpace(name) == "" {
		return models.DocumentGroup{}, apperr.New(apperr.KindValidation, "group name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return models.DocumentGroup{}, err
	}
	for i, g := range file.Groups {
		if g.GUID == guid {
			file.Groups[i].Name = name
			if err := s.save(file); err != nil {
				return models.DocumentGroup{}, err
			}
			g = file.Groups[i]
			g.DocumentCount = s.countDocuments(guid)
			return g, nil
		}
	}
	return models.DocumentGroup{}, apperr.Newf(apperr.KindNotFound, "document group %s not found", guid)
}

// Delete removes the record and the group's upload directory. Conversation
// logs that referenced the group are left untouched.
func (s *GroupStore) Delete(guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	kept := file.Groups[:0]
	found := false
	for _, g := range file.Groups {
		if g.GUID == guid {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	if !found {
		return apperr.Newf(apperr.KindNotFound, "document group %s not found", guid)
	}
	file.Groups = kept
	if err := s.save(file); err != nil {
		return err
	}
	if err := os.RemoveAll(s.layout.GroupDir(guid)); err != nil {
		return fmt.Errorf("remove group dir: %w", err)
	}
	return nil
}

// SyncCount rewrites the stored counter for a group from the live count.
func (s *GroupStore) SyncCount(guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	for i, g := range file.Groups {
		if g.GUID != guid {
			continue
		}
		file.Groups[i].DocumentCount = s.countDocuments(guid)
		return s.save(file)
	}
	return apperr.Newf(apperr.KindNotFound, "document group %s not found", guid)
}
