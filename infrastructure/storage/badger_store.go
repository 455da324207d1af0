package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	documentPrefix    = "doc:"
	sequencePrefix    = "seq:"
	sequenceBandwidth = 100

	// conflictRetries bounds how often a read-then-write transaction is replayed
	// after another transaction touched the keys it read.
	conflictRetries = 10
)

var _ Store = (*BadgerStore)(nil)

// BadgerStore keeps each collection under its own key prefix.
// Keys are formatted as "doc:{collection}:{sequence_padded}" so that a prefix
// scan returns documents in insertion order (19-digit zero padding keeps the
// lexicographical order equal to the numerical one).
type BadgerStore struct {
	db          *badger.DB
	log         *slog.Logger
	mu          sync.Mutex
	collections map[string]*badgerCollection
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{
		db:          db,
		log:         log,
		collections: make(map[string]*badgerCollection),
	}
}

// Collection leases a sequence for the collection on first use.
func (s *BadgerStore) Collection(name string) (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	seq, err := s.db.GetSequence([]byte(sequencePrefix+name), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("lease sequence for %s: %w", name, err)
	}
	c := &badgerCollection{name: name, db: s.db, seq: seq, log: s.log}
	s.collections[name] = c
	return c, nil
}

// Close releases the leased sequences. The *badger.DB stays open, its owner closes it.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, c := range s.collections {
		if err := c.seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release sequence for %s: %w", name, err))
		}
		delete(s.collections, name)
	}
	return errors.Join(errs...)
}

type badgerCollection struct {
	name string
	db   *badger.DB
	seq  *badger.Sequence
	log  *slog.Logger
}

func (c *badgerCollection) prefix() []byte {
	return []byte(documentPrefix + c.name + ":")
}

func (c *badgerCollection) key(n uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d", documentPrefix, c.name, n))
}

func (c *badgerCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var docs []Document
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(txn, filter, func(_ []byte, doc Document) bool {
			docs = append(docs, doc)
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *badgerCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var found Document
	err := c.db.View(func(txn *badger.Txn) error {
		return c.scan(txn, filter, func(_ []byte, doc Document) bool {
			found = doc
			return false
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNoDocuments
	}
	return found, nil
}

func (c *badgerCollection) InsertOne(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc = withID(doc, uuid.NewString())
	data, err := encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	n, err := c.seq.Next()
	if err != nil {
		return "", err
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(n), data)
	})
	if err != nil {
		return "", err
	}
	return doc.ID(), nil
}

// UpdateOne modifies the first document matching filter, in insertion order.
func (c *badgerCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var matched int64
	err := c.update(func(txn *badger.Txn) error {
		matched = 0
		var key []byte
		var target Document
		err := c.scan(txn, filter, func(k []byte, doc Document) bool {
			key, target = k, doc
			return false
		})
		if err != nil || key == nil {
			return err
		}
		data, err := encode(update.apply(target))
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		matched = 1
		return txn.Set(key, data)
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

func (c *badgerCollection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var deleted int64
	err := c.update(func(txn *badger.Txn) error {
		var keys [][]byte
		err := c.scan(txn, filter, func(k []byte, _ Document) bool {
			keys = append(keys, k)
			return true
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		deleted = int64(len(keys))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// update runs fn in a read-write transaction, replaying it on badger.ErrConflict.
func (c *badgerCollection) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if err = c.db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
		c.log.Debug("Transaction conflict, retrying", "collection", c.name, "attempt", attempt+1)
	}
	return err
}

// scan walks the collection prefix and hands each matching document to visit
// until visit returns false. Keys are copied, they outlive the iterator.
func (c *badgerCollection) scan(txn *badger.Txn, filter Filter, visit func(key []byte, doc Document) bool) error {
	prefix := c.prefix()
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var doc Document
		err := item.Value(func(value []byte) error {
			var err error
			doc, err = decode(value)
			return err
		})
		if err != nil {
			return fmt.Errorf("decode %s: %w", item.Key(), err)
		}
		if !filter.Match(doc) {
			continue
		}
		if !visit(item.KeyCopy(nil), doc) {
			return nil
		}
	}
	return nil
}
