// Package storage persists application state under a single files root:
// JSON record stores for groups, conversations and settings, uploaded
// documents in per-group directories, and XML logs for conversation
// messages and debug traces. The layout matches the original data directory
// so an existing files tree keeps working unchanged.
package storage

import "path/filepath"

// Index file names under the files root.
const (
	ConversationsFileName = "conversations.json"
	GroupsFileName        = "document-groups.json"
)

// LogsDirName holds per-conversation XML logs.
const LogsDirName = "conversations"

// GroupsDirName holds uploaded files, one subdirectory per group.
const GroupsDirName = "groups"

// Layout resolves paths inside the files root.
type Layout struct {
	Root string
}

// ConversationsPath is the conversation index file.
func (l Layout) ConversationsPath() string {
	return filepath.Join(l.Root, ConversationsFileName)
}

// GroupsIndexPath is the document group index file.
func (l Layout) GroupsIndexPath() string {
	return filepath.Join(l.Root, GroupsFileName)
}

// GroupsDir holds one subdirectory of uploads per group.
func (l Layout) GroupsDir() string {
	return filepath.Join(l.Root, GroupsDirName)
}

// GroupDir is the upload directory for a group.
func (l Layout) GroupDir(groupID string) string {
	return filepath.Join(l.GroupsDir(), groupID)
}

// ConversationDir holds files uploaded into a conversation.
func (l Layout) ConversationDir(conversationID string) string {
	return filepath.Join(l.Root, conversationID)
}

// ConversationGroupDir scopes conversation uploads to a group.
func (l Layout) ConversationGroupDir(conversationID, groupID string) string {
	return filepath.Join(l.Root, conversationID, groupID)
}

// LogsDir holds the XML message and debug logs.
func (l Layout) LogsDir() string {
	return filepath.Join(l.Root, LogsDirName)
}

// MessageLogPath is the XML message log for a conversation.
func (l Layout) MessageLogPath(conversationID string) string {
	return filepath.Join(l.LogsDir(), conversationID+".xml")
}

// DebugLogPath is the XML debug trace log for a conversation.
func (l Layout) DebugLogPath(conversationID string) string {
	return filepath.Join(l.LogsDir(), conversationID+"-debug.xml")
}
