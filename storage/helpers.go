package storage

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Artifact encoding/decoding. Times are encoded as RFC3339 strings with
// nanoseconds so records read back equal to the ones written.
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// getArtifact decodes the artifact stored under prefix+key into out. It
// returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rd.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// setArtifact encodes and stores the artifact under prefix+key in a single
// write transaction.
func (s *Storage) setArtifact(prefix, key []byte, a any) error {
	data, err := encodeArtifact(a)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, data); err != nil {
		wTx.Discard()
		return fmt.Errorf("set artifact: %w", err)
	}
	return wTx.Commit()
}

// deleteArtifact removes prefix+key. It returns ErrNotFound if the key does
// not exist.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if _, err := wTx.Get(key); err != nil {
		wTx.Discard()
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return fmt.Errorf("delete artifact: %w", err)
	}
	return wTx.Commit()
}

// iterateArtifacts calls fn with every raw artifact under prefix. Iteration
// stops when fn returns false.
func (s *Storage) iterateArtifacts(prefix []byte, fn func(key, value []byte) bool) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	if err := rd.Iterate(nil, fn); err != nil {
		return fmt.Errorf("iterate artifacts: %w", err)
	}
	return nil
}
