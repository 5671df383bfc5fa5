// Package save persists world edits to a LevelDB database so a session can
// resume with its overrides intact. Lighting borders and micro seams are
// deliberately not persisted; they are rebuilt from scratch.
package save

import (
	"encoding/binary"
	"fmt"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/util"
	"github.com/stonelantern/stonelantern/engine/block"
	"github.com/stonelantern/stonelantern/engine/edit"
)

// editKeyPrefix namespaces edit records in the database.
const editKeyPrefix = 'e'

// DB wraps the LevelDB handle.
type DB struct {
	ldb *leveldb.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open save db: %w", err)
	}
	return &DB{ldb: ldb}, nil
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	return d.ldb.Close()
}

func editKey(p edit.WorldPos) []byte {
	k := make([]byte, 13)
	k[0] = editKeyPrefix
	binary.LittleEndian.PutUint32(k[1:], uint32(p.X))
	binary.LittleEndian.PutUint32(k[5:], uint32(p.Y))
	binary.LittleEndian.PutUint32(k[9:], uint32(p.Z))
	return k
}

// PutEdit persists one block override.
func (d *DB) PutEdit(p edit.WorldPos, b block.Block) error {
	v := make([]byte, 4)
	binary.LittleEndian.PutUint16(v[0:], b.ID)
	binary.LittleEndian.PutUint16(v[2:], b.State)
	return d.ldb.Put(editKey(p), v, nil)
}

// SaveEdits writes every override of the store in one batch.
func (d *DB) SaveEdits(s *edit.Store) error {
	batch := new(leveldb.Batch)
	for p, b := range s.All() {
		v := make([]byte, 4)
		binary.LittleEndian.PutUint16(v[0:], b.ID)
		binary.LittleEndian.PutUint16(v[2:], b.State)
		batch.Put(editKey(p), v)
	}
	return d.ldb.Write(batch, nil)
}

// LoadEdits reads all persisted overrides.
func (d *DB) LoadEdits() (map[edit.WorldPos]block.Block, error) {
	out := make(map[edit.WorldPos]block.Block)
	it := d.ldb.NewIterator(util.BytesPrefix([]byte{editKeyPrefix}), nil)
	defer it.Release()
	for it.Next() {
		k, v := it.Key(), it.Value()
		if len(k) != 13 || len(v) != 4 {
			continue
		}
		p := edit.WorldPos{
			X: int32(binary.LittleEndian.Uint32(k[1:])),
			Y: int32(binary.LittleEndian.Uint32(k[5:])),
			Z: int32(binary.LittleEndian.Uint32(k[9:])),
		}
		out[p] = block.Block{
			ID:    binary.LittleEndian.Uint16(v[0:]),
			State: binary.LittleEndian.Uint16(v[2:]),
		}
	}
	return out, it.Error()
}

// Restore replays persisted overrides into an edit store without bumping
// revisions, for use before the first build.
func (d *DB) Restore(s *edit.Store) error {
	edits, err := d.LoadEdits()
	if err != nil {
		return err
	}
	s.Replay(edits)
	return nil
}
