package vector

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/apperr"
)

// StoreType selects the vector index backend.
type StoreType string

const (
	// StoreTypeMemory uses the JSON snapshot index. Good for small corpora.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeMilvus uses a Milvus collection. Requires a reachable server.
	StoreTypeMilvus StoreType = "milvus"
)

// GlobalCollection is the Milvus collection for the shared corpus.
const GlobalCollection = "documents"

// Options selects and scopes a vector index.
type Options struct {
	Store      StoreType
	MilvusURL  string
	Dimensions int
	// Timeout bounds Milvus dials and calls. Zero means no bound.
	Timeout time.Duration
	// FilesRoot is the data directory snapshot files live under.
	FilesRoot string
	// ConversationID and GroupID scope the index to a conversation corpus.
	// Both empty means the global corpus.
	ConversationID string
	GroupID        string
	Logger         *zap.Logger
}

// Open returns the vector index for the requested scope. A Milvus store that
// cannot be reached degrades to the snapshot store for the same scope, so a
// down Milvus never blocks asking questions. Unknown store types are a
// configuration error.
func Open(ctx context.Context, opts Options) (Index, error) {
	switch opts.Store {
	case StoreTypeMemory, "":
		return openSnapshotScope(opts)
	case StoreTypeMilvus:
		idx, err := OpenMilvus(ctx, opts.MilvusURL, CollectionName(opts.ConversationID), opts.Dimensions, opts.Timeout)
		if err == nil {
			return idx, nil
		}
		if !apperr.Is(err, apperr.KindIndexUnavailable) {
			return nil, err
		}
		if opts.Logger != nil {
			opts.Logger.Warn("Milvus unavailable, falling back to snapshot store",
				zap.String("url", opts.MilvusURL),
				zap.Error(err))
		}
		return openSnapshotScope(opts)
	default:
		return nil, apperr.Newf(apperr.KindConfiguration,
			"unknown vector store type %q (supported: memory, milvus)", opts.Store)
	}
}

func openSnapshotScope(opts Options) (Index, error) {
	idx, err := OpenSnapshot(SnapshotPath(opts.FilesRoot, opts.ConversationID, opts.GroupID))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexUnavailable, "open snapshot store", err)
	}
	return idx, nil
}

// SnapshotPath returns the snapshot file location for a scope: the files root
// for the global corpus, or files/<conversation>/<group>/ for a conversation
// corpus.
func SnapshotPath(root, conversationID, groupID string) string {
	switch {
	case conversationID != "" && groupID != "":
		return filepath.Join(root, conversationID, groupID, SnapshotFileName)
	case conversationID != "":
		return filepath.Join(root, conversationID, SnapshotFileName)
	default:
		return filepath.Join(root, SnapshotFileName)
	}
}

// CollectionName returns the Milvus collection for a scope. Conversation
// corpora get their own collection; hyphens in IDs are mapped to underscores
// to satisfy Milvus naming rules.
func CollectionName(conversationID string) string {
	if conversationID == "" {
		return GlobalCollection
	}
	return "conv_" + strings.ReplaceAll(conversationID, "-", "_")
}
