package models

import (
	"path/filepath"
	"strings"
)

// DocumentGroup is a named collection of uploaded files. DocumentCount is
// computed live from the filesystem at read time; the stored value is kept
// for file-format compatibility only.
type DocumentGroup struct {
	GUID          string `json:"guid"`
	Name          string `json:"name"`
	CreatedAt     string `json:"createdAt"`
	DocumentCount int    `json:"documentCount"`
}

// Conversation is a chat session record. Its messages live in a separate
// per-conversation log file.
type Conversation struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

// FileInfo describes an uploaded file discovered by directory traversal.
// Path is relative to the files root.
type FileInfo struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	Size           int64  `json:"size"`
	LastModified   string `json:"lastModified"`
	GroupID        string `json:"groupId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Type           string `json:"type"`
}

// FileTypeForName maps a file name to a coarse display type by extension.
func FileTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".doc", ".docx":
		return "word"
	case ".txt":
		return "text"
	case ".jpg", ".jpeg", ".png", ".gif":
		return "image"
	default:
		return "document"
	}
}
