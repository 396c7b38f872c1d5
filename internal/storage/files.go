package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/models"
)

// FileStore manages uploaded documents under the files root.
type FileStore struct {
	layout Layout
	groups *GroupStore
}

// NewFileStore returns a file store. groups may be nil when counter sync is
// not wanted (tests).
func NewFileStore(layout Layout, groups *GroupStore) *FileStore {
	return &FileStore{layout: layout, groups: groups}
}

// isInternal reports whether a directory entry is application state rather
// than an uploaded document.
func isInternal(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json")
}

func (s *FileStore) fileInfo(path string, info os.FileInfo, groupID, conversationID string) models.FileInfo {
	rel, err := filepath.Rel(s.layout.Root, path)
	if err != nil {
		rel = path
	}
	return models.FileInfo{
		Name:           info.Name(),
		Path:           filepath.ToSlash(rel),
		Size:           info.Size(),
		LastModified:   info.ModTime().UTC().Format(time.RFC3339),
		GroupID:        groupID,
		ConversationID: conversationID,
		Type:           models.FileTypeForName(info.Name()),
	}
}

// listDir returns the uploaded files directly inside dir.
func (s *FileStore) listDir(dir, groupID, conversationID string) ([]models.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []models.FileInfo
	for _, e := range entries {
		if e.IsDir() || isInternal(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, s.fileInfo(filepath.Join(dir, e.Name()), info, groupID, conversationID))
	}
	return out, nil
}

// ListGroupFiles returns the files uploaded into a group.
func (s *FileStore) ListGroupFiles(groupID string) ([]models.FileInfo, error) {
	return s.listDir(s.layout.GroupDir(groupID), groupID, "")
}

// ListAllGroupFiles returns the files of every group directory.
func (s *FileStore) ListAllGroupFiles() ([]models.FileInfo, error) {
	entries, err := os.ReadDir(s.layout.GroupsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list groups dir: %w", err)
	}
	var out []models.FileInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := s.ListGroupFiles(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

// ListConversationFiles returns files uploaded into a conversation: loose
// files in the conversation directory plus files in its per-group
// subdirectories.
func (s *FileStore) ListConversationFiles(conversationID string) ([]models.FileInfo, error) {
	dir := s.layout.ConversationDir(conversationID)
	out, err := s.listDir(dir, "", conversationID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == LogsDirName {
			continue
		}
		files, err := s.listDir(filepath.Join(dir, e.Name()), e.Name(), conversationID)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

// SaveUploaded writes an uploaded document. With a conversation ID the file
// lands under files/<conversation>/<group>/, otherwise under
// files/groups/<group>/. The group's stored counter is refreshed afterwards.
func (s *FileStore) SaveUploaded(groupID, conversationID, name string, data []byte) (models.FileInfo, error) {
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return models.FileInfo{}, apperr.New(apperr.KindValidation, "file name is required")
	}
	if groupID == "" {
		return models.FileInfo{}, apperr.New(apperr.KindValidation, "group id is required")
	}
	var dir string
	if conversationID != "" {
		dir = s.layout.ConversationGroupDir(conversationID, groupID)
	} else {
		dir = s.layout.GroupDir(groupID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.FileInfo{}, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return models.FileInfo{}, fmt.Errorf("write upload: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return models.FileInfo{}, fmt.Errorf("stat upload: %w", err)
	}
	if conversationID == "" && s.groups != nil {
		_ = s.groups.SyncCount(groupID)
	}
	return s.fileInfo(path, info, groupID, conversationID), nil
}

// Delete removes an uploaded document by its root-relative path. Paths that
// escape the files root are rejected.
func (s *FileStore) Delete(relPath string) error {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return apperr.Newf(apperr.KindValidation, "invalid file path %q", relPath)
	}
	path := filepath.Join(s.layout.Root, clean)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.Newf(apperr.KindNotFound, "file %s not found", relPath)
		}
		return fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return apperr.Newf(apperr.KindValidation, "%s is a directory", relPath)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if s.groups != nil {
		// files/groups/<groupID>/<name>
		parts := strings.Split(filepath.ToSlash(clean), "/")
		if len(parts) == 3 && parts[0] == GroupsDirName {
			_ = s.groups.SyncCount(parts[1])
		}
	}
	return nil
}

// Read returns the raw bytes of an uploaded document by root-relative path.
func (s *FileStore) Read(relPath string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, apperr.Newf(apperr.KindValidation, "invalid file path %q", relPath)
	}
	data, err := os.ReadFile(filepath.Join(s.layout.Root, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Newf(apperr.KindNotFound, "file %s not found", relPath)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
