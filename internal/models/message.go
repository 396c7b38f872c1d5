package models

// Message roles. Ordering in a conversation log is append order.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Source types recorded on assistant messages.
const (
	SourceDocument = "document"
	SourceWeb      = "web"
)

// Message is one entry in a conversation log. Timestamp is Unix milliseconds.
// SourceType, SourceURL, and UsedRag are only present on some assistant messages.
type Message struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	SourceType string `json:"sourceType,omitempty"`
	SourceURL  string `json:"sourceUrl,omitempty"`
	UsedRAG    *bool  `json:"usedRag,omitempty"`
}

// Debug trace entry types. A request/response pair is recorded around each
// provider call; intermediate pipeline steps are not traced.
const (
	DebugRequest  = "request"
	DebugResponse = "response"
)

// DebugEntry is one entry in a conversation's debug trace log.
// Content is an arbitrary structured payload, serialized as JSON.
type DebugEntry struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Content   interface{} `json:"content"`
	Timestamp int64       `json:"timestamp"`
}

// BoolPtr returns a pointer to b, for the optional UsedRAG field.
func BoolPtr(b bool) *bool {
	return &b
}
