package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/apperr"
)

func TestOpenDefaultsToSnapshot(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(context.Background(), Options{FilesRoot: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	snap, ok := idx.(*SnapshotIndex)
	if !ok {
		t.Fatalf("expected snapshot index, got %T", idx)
	}
	if snap.Path() != filepath.Join(dir, SnapshotFileName) {
		t.Errorf("unexpected snapshot path: %s", snap.Path())
	}
}

func TestOpenUnknownStore(t *testing.T) {
	_, err := Open(context.Background(), Options{Store: "qdrant"})
	if err == nil {
		t.Fatal("expected error for unknown store type")
	}
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestSnapshotPath(t *testing.T) {
	tests := []struct {
		name         string
		conversation string
		group        string
		want         string
	}{
		{"global", "", "", filepath.Join("files", SnapshotFileName)},
		{"conversation", "c1", "", filepath.Join("files", "c1", SnapshotFileName)},
		{"conversation group", "c1", "g1", filepath.Join("files", "c1", "g1", SnapshotFileName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapshotPath("files", tt.conversation, tt.group); got != tt.want {
				t.Errorf("SnapshotPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCollectionName(t *testing.T) {
	if got := CollectionName(""); got != GlobalCollection {
		t.Errorf("global collection: got %s", got)
	}
	if got := CollectionName("ab-cd-ef"); got != "conv_ab_cd_ef" {
		t.Errorf("conversation collection: got %s", got)
	}
}
