package localstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// InMemoryPath opens a [Badger] store that is never written to disk.
const InMemoryPath = ":memory:"

// Badger implements [Storage] on an embedded badger database.
type Badger struct {
	db *badger.DB
}

var _ Storage = (*Badger)(nil)

// OpenBadger opens (or creates) the database directory at path.
// A nil logger silences badger.
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	var opts badger.Options
	switch path {
	case "":
		return nil, errors.New("localstore: empty path")
	case InMemoryPath:
		opts = badger.DefaultOptions("").WithInMemory(true)
	default:
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("localstore: create %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(nil)
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("localstore: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) GetItem(key string) (string, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return "", false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return "", false, ErrClosed
	case err != nil:
		return "", false, fmt.Errorf("localstore: get %q: %w", key, err)
	}
	return string(value), true, nil
}

func (b *Badger) SetItem(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("localstore: set %q: %w", key, err)
	}
	return nil
}

func (b *Badger) RemoveItem(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("localstore: remove %q: %w", key, err)
	}
	return nil
}

func (b *Badger) Close() error { return b.db.Close() }

// badgerLogger adapts [slog.Logger] to [badger.Logger].
type badgerLogger struct{ logger *slog.Logger }

func (l badgerLogger) Errorf(format string, args ...any) { l.logger.Error(fmt.Sprintf(format, args...)) }

func (l badgerLogger) Warningf(format string, args ...any) { l.logger.Warn(fmt.Sprintf(format, args...)) }

func (l badgerLogger) Infof(format string, args ...any) { l.logger.Debug(fmt.Sprintf(format, args...)) }

func (l badgerLogger) Debugf(format string, args ...any) { l.logger.Debug(fmt.Sprintf(format, args...)) }
