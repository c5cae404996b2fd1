package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/hailam/shogiplay/internal/board"
)

// Book keys are "book/" + position hash (8 bytes) + move (4 bytes), all
// big-endian; the value is the 4-byte weight.
var bookPrefix = []byte("book/")

// BookRecord is one stored book move.
type BookRecord struct {
	Hash   uint64
	Move   board.Move
	Weight uint32
}

// BookStore persists opening book moves.
type BookStore struct {
	db *badger.DB
}

// Book returns the book store backed by s.
func (s *Storage) Book() *BookStore {
	return &BookStore{db: s.db}
}

func bookKey(hash uint64, move board.Move) []byte {
	key := make([]byte, 0, len(bookPrefix)+12)
	key = append(key, bookPrefix...)
	key = binary.BigEndian.AppendUint64(key, hash)
	return binary.BigEndian.AppendUint32(key, uint32(move))
}

func decodeBookItem(item *badger.Item) (BookRecord, error) {
	key := item.Key()
	if len(key) != len(bookPrefix)+12 {
		return BookRecord{}, fmt.Errorf("malformed book key %x", key)
	}
	rest := key[len(bookPrefix):]
	rec := BookRecord{
		Hash: binary.BigEndian.Uint64(rest[:8]),
		Move: board.Move(binary.BigEndian.Uint32(rest[8:])),
	}
	err := item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("malformed book weight for key %x", key)
		}
		rec.Weight = binary.BigEndian.Uint32(val)
		return nil
	})
	return rec, err
}

// PutBookEntry stores or overwrites the weight of move in position hash.
func (bs *BookStore) PutBookEntry(hash uint64, move board.Move, weight uint32) error {
	val := binary.BigEndian.AppendUint32(nil, weight)
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bookKey(hash, move), val)
	})
}

// PutBookEntries stores recs in a single write batch.
func (bs *BookStore) PutBookEntries(recs []BookRecord) error {
	wb := bs.db.NewWriteBatch()
	defer wb.Cancel()
	for _, rec := range recs {
		if err := wb.Set(bookKey(rec.Hash, rec.Move), binary.BigEndian.AppendUint32(nil, rec.Weight)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Count returns the number of stored book moves.
func (bs *BookStore) Count() (int, error) {
	n := 0
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = bookPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// BookEntries returns every stored move for a position, ordered by move.
func (bs *BookStore) BookEntries(hash uint64) ([]BookRecord, error) {
	prefix := binary.BigEndian.AppendUint64(bytes.Clone(bookPrefix), hash)
	var out []BookRecord
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rec, err := decodeBookItem(it.Item())
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// ForEachBookEntry calls fn for every stored book move. Iteration stops at
// the first error fn returns.
func (bs *BookStore) ForEachBookEntry(fn func(BookRecord) error) error {
	return bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = bookPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rec, err := decodeBookItem(it.Item())
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteBook removes every stored book move.
func (bs *BookStore) DeleteBook() error {
	return bs.db.DropPrefix(bookPrefix)
}
