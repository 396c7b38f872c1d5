package fileid

import (
	"strings"
	"testing"
)

func TestDocID(t *testing.T) {
	// Deterministic: same path gives same ID
	id1 := DocID("groups/g1/bar.txt")
	id2 := DocID("groups/g1/bar.txt")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if len(id1) < 10 {
		t.Errorf("ID too short: %q", id1)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
}

func TestDocID_differentPaths(t *testing.T) {
	if DocID("groups/g1/bar.txt") == DocID("groups/g1/baz.txt") {
		t.Error("different paths should give different IDs")
	}
}

func TestDocID_normalized(t *testing.T) {
	// Clean path: a/b and a/b/ and a/./b should match
	id1 := DocID("a/b")
	id2 := DocID("a/b/")
	id3 := DocID("a/./b")
	if id1 != id2 {
		t.Errorf("paths differing only by trailing slash should match: %q vs %q", id1, id2)
	}
	if id1 != id3 {
		t.Errorf("paths with . should normalize: %q vs %q", id1, id3)
	}
}

func TestChunkID(t *testing.T) {
	id0 := ChunkID("a/b.txt", 0)
	id1 := ChunkID("a/b.txt", 1)
	if id0 == id1 {
		t.Error("different chunk indexes should give different IDs")
	}
	if !strings.HasPrefix(id0, DocID("a/b.txt")) {
		t.Errorf("chunk ID should embed the document ID: %q", id0)
	}
	if ChunkID("a/b.txt", 1) != id1 {
		t.Error("chunk IDs should be deterministic")
	}
}
