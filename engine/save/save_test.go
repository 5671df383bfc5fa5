package save

import (
	"path/filepath"
	"testing"

	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/chunk"
	"github.com/stonelantern/stonelantern/engine/edit"
)

func TestEditsRoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "world"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	src := edit.NewStore(16, 16, 16)
	src.Set(1, 2, 3, block.Block{ID: 7, State: 2})
	src.Set(-5, 0, 9, block.Block{ID: 3})
	if err := db.SaveEdits(src); err != nil {
		t.Fatalf("save: %v", err)
	}

	dst := edit.NewStore(16, 16, 16)
	if err := db.Restore(dst); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, ok := dst.Get(1, 2, 3)
	if !ok || got != (block.Block{ID: 7, State: 2}) {
		t.Fatalf("restored edit = %v ok=%v", got, ok)
	}
	if got, ok := dst.Get(-5, 0, 9); !ok || got.ID != 3 {
		t.Fatalf("restored negative-coord edit = %v ok=%v", got, ok)
	}
	// Restore replays without bumping revisions.
	if rev := dst.Rev(chunk.OwnerOf(1, 2, 3, 16, 16, 16)); rev != 0 {
		t.Fatalf("replay bumped revision to %d", rev)
	}
}
