package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// Entity provides generic CRUD over JSON records of type T with secondary
// indexes maintained in the same transaction as the record.
type Entity[T any] struct {
	db       *badger.DB
	prefix   string
	notFound *store.Error
	indexes  []index[T]
}

type index[T any] struct {
	name   string
	unique bool
	// conflict is returned when a unique index value is already taken.
	conflict *store.Error
	keyGen   func(*T) []string
	// lookup normalizes values passed to GetByIndex and ListByIndex.
	lookup func(string) string
}

// NewEntity creates an entity stored under prefix. notFound is returned
// for missing records.
func NewEntity[T any](db *badger.DB, prefix string, notFound *store.Error) *Entity[T] {
	return &Entity[T]{db: db, prefix: prefix, notFound: notFound}
}

// WithUniqueIndex adds an index whose values may belong to one record only.
func (e *Entity[T]) WithUniqueIndex(name string, conflict *store.Error, keyGen func(*T) []string, lookup func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, index[T]{name: name, unique: true, conflict: conflict, keyGen: keyGen, lookup: lookup})
	return e
}

// WithIndex adds an index whose values may be shared by many records.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, index[T]{name: name, keyGen: keyGen})
	return e
}

func (e *Entity[T]) index(name string) (index[T], bool) {
	for _, idx := range e.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return index[T]{}, false
}

func (e *Entity[T]) indexKey(idx index[T], value, id string) []byte {
	if idx.unique {
		return uniqueIndexKey(e.prefix, idx.name, value)
	}
	return multiIndexKey(e.prefix, idx.name, value, id)
}

// Create inserts a new record inside txn.
func (e *Entity[T]) Create(txn *badger.Txn, id string, entity *T) error {
	_, err := txn.Get(recordKey(e.prefix, id))
	if err == nil {
		return store.ErrAlreadyExists
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("check existing key: %w", err)
	}

	return e.write(txn, id, entity, nil)
}

// Update replaces an existing record inside txn, moving its index keys.
func (e *Entity[T]) Update(txn *badger.Txn, id string, entity *T) error {
	old, err := e.Get(txn, id)
	if err != nil {
		return err
	}
	return e.write(txn, id, entity, old)
}

func (e *Entity[T]) write(txn *badger.Txn, id string, entity, old *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	for _, idx := range e.indexes {
		var oldKeys map[string]bool
		if old != nil {
			oldKeys = make(map[string]bool)
			for _, v := range idx.keyGen(old) {
				oldKeys[v] = true
			}
		}

		newKeys := idx.keyGen(entity)
		keep := make(map[string]bool, len(newKeys))
		for _, v := range newKeys {
			keep[v] = true
			if oldKeys[v] {
				continue
			}
			if idx.unique {
				_, err := txn.Get(uniqueIndexKey(e.prefix, idx.name, v))
				if err == nil {
					return idx.conflict
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("check index %s: %w", idx.name, err)
				}
			}
			if err := txn.Set(e.indexKey(idx, v, id), []byte(id)); err != nil {
				return fmt.Errorf("set index %s: %w", idx.name, err)
			}
		}

		for v := range oldKeys {
			if keep[v] {
				continue
			}
			if err := txn.Delete(e.indexKey(idx, v, id)); err != nil {
				return fmt.Errorf("delete index %s: %w", idx.name, err)
			}
		}
	}

	if err := txn.Set(recordKey(e.prefix, id), data); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

// Get reads a record inside txn.
func (e *Entity[T]) Get(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(recordKey(e.prefix, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, e.notFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}

	var entity T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}
	return &entity, nil
}

// Exists reports whether a record with id is present.
func (e *Entity[T]) Exists(txn *badger.Txn, id string) (bool, error) {
	_, err := txn.Get(recordKey(e.prefix, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// GetByIndex reads the record a unique index value points at.
func (e *Entity[T]) GetByIndex(txn *badger.Txn, indexName, value string) (*T, error) {
	idx, ok := e.index(indexName)
	if !ok || !idx.unique {
		return nil, fmt.Errorf("no unique index %q", indexName)
	}
	if idx.lookup != nil {
		value = idx.lookup(value)
	}

	item, err := txn.Get(uniqueIndexKey(e.prefix, idx.name, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, e.notFound
	}
	if err != nil {
		return nil, err
	}

	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return e.Get(txn, string(id))
}

// Delete removes a record and its index keys. Returns the entity's
// not-found error when nothing was stored under id.
func (e *Entity[T]) Delete(txn *badger.Txn, id string) error {
	entity, err := e.Get(txn, id)
	if err != nil {
		return err
	}

	for _, idx := range e.indexes {
		for _, v := range idx.keyGen(entity) {
			if err := txn.Delete(e.indexKey(idx, v, id)); err != nil {
				return fmt.Errorf("delete index %s: %w", idx.name, err)
			}
		}
	}

	if err := txn.Delete(recordKey(e.prefix, id)); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// List iterates records in key order, skipping index keys.
func (e *Entity[T]) List(ctx context.Context, txn *badger.Txn) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix)
		idxPrefix := []byte(e.prefix + idxMarker)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			item := it.Item()
			if bytes.HasPrefix(item.Key(), idxPrefix) {
				continue
			}

			var entity T
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entity)
			})
			if err != nil {
				yield(nil, fmt.Errorf("unmarshal entity: %w", err))
				return
			}
			if !yield(&entity, nil) {
				return
			}
		}
	}
}

// ListByIndex iterates the records a multi index value points at, in id order.
func (e *Entity[T]) ListByIndex(ctx context.Context, txn *badger.Txn, indexName, value string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		idx, ok := e.index(indexName)
		if !ok || idx.unique {
			yield(nil, fmt.Errorf("no multi index %q", indexName))
			return
		}

		prefix := multiIndexPrefix(e.prefix, idx.name, value)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			id := string(it.Item().Key()[len(prefix):])
			entity, err := e.Get(txn, id)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(entity, nil) {
				return
			}
		}
	}
}

// Count returns the number of records.
func (e *Entity[T]) Count(ctx context.Context, txn *badger.Txn) (int, error) {
	prefix := []byte(e.prefix)
	idxPrefix := []byte(e.prefix + idxMarker)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !bytes.HasPrefix(it.Item().Key(), idxPrefix) {
			n++
		}
	}
	return n, nil
}
