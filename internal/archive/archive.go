// Package archive stores imported captures in an embedded BadgerDB so they
// can be listed and replayed later.
//
// Captures are stored as their re-encoded record lines plus metadata under
// "capture/<uuid>" keys. Replaying a record runs the lines through the
// normal import path again.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/capture"
	"github.com/ayushev/micro-man-tools/internal/record"
)

const keyPrefix = "capture/"

// ErrNotFound is returned when no capture has the requested id.
var ErrNotFound = errors.New("capture not found in archive")

// Config holds configuration for an archive.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in memory. Useful for testing.
	InMemory bool
	// Logger receives BadgerDB logging. Nil disables it.
	Logger *zap.Logger
}

// Record is one archived capture.
type Record struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Format   string    `json:"format"`
	StoredAt time.Time `json:"stored_at"`
	Codes    []string  `json:"codes"`
	Failed   int       `json:"failed"`
}

// Replay imports the archived lines again.
func (r Record) Replay(opts capture.Options) (*capture.Capture, error) {
	format, err := record.ParseFormat(r.Format)
	if err != nil {
		return nil, fmt.Errorf("archived capture %s: %w", r.ID, err)
	}
	opts.Format = format
	return capture.Read(r.Name, strings.NewReader(strings.Join(r.Codes, "\n")), opts)
}

// badgerLogger adapts zap.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(strings.TrimSuffix(format, "\n"), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(strings.TrimSuffix(format, "\n"), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(strings.TrimSuffix(format, "\n"), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSuffix(format, "\n"), args...)
}

// Archive is a capture store. It is safe for concurrent use.
type Archive struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens the archive described by cfg, creating the directory if needed.
// Caller must call Close when done.
func Open(cfg Config) (*Archive, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("archive path is required for a persistent archive")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create archive directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	return &Archive{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put stores a capture and returns its record.
func (a *Archive) Put(c *capture.Capture) (Record, error) {
	rec := Record{
		ID:       uuid.NewString(),
		Name:     c.Name,
		Format:   c.Format.Name(),
		StoredAt: a.now().UTC(),
		Codes:    c.Codes(),
		Failed:   len(c.Report.Failed),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal archive record: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.ID), data)
	})
	if err != nil {
		return Record{}, fmt.Errorf("store capture %s: %w", c.Name, err)
	}

	return rec, nil
}

// Get returns the record with the given id.
func (a *Archive) Get(id string) (Record, error) {
	var rec Record
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns every archived record, oldest first.
func (a *Archive) List() ([]Record, error) {
	var recs []Record
	prefix := []byte(keyPrefix)

	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].StoredAt.Equal(recs[j].StoredAt) {
			return recs[i].StoredAt.Before(recs[j].StoredAt)
		}
		return recs[i].Name < recs[j].Name
	})
	return recs, nil
}

// Delete removes the record with the given id.
func (a *Archive) Delete(id string) error {
	if _, err := a.Get(id); err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}
