// Package synclog persists completed sync intervals in a WAL so operators
// can audit which windows were imported and when.
package synclog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	DefaultDir   = "./wal/synclog"
	segmentLimit = 1000
	maxSegments  = 10

	intervalKeyPrefix = "interval_"
)

// Entry records one completed sync interval for one platform.
type Entry struct {
	Platform    string    `json:"platform"`
	From        int64     `json:"from"`
	To          int64     `json:"to"`
	CompletedAt time.Time `json:"completed_at"`
}

// WALStore is a WAL-backed journal of completed sync intervals.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed sync journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "sync_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init sync journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save journals one completed interval.
func (s *WALStore) Save(entry Entry) error {
	if s == nil || s.wal == nil {
		return errors.New("sync journal is not initialized")
	}
	if entry.Platform == "" {
		return fmt.Errorf("sync journal entry platform is required")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal sync journal entry")
	}

	key := fmt.Sprintf("%s%s", intervalKeyPrefix, entry.Platform)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Last returns the most recent journaled interval for the platform, if any.
func (s *WALStore) Last(platform string) (Entry, bool, error) {
	if s == nil || s.wal == nil {
		return Entry{}, false, errors.New("sync journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		last  Entry
		found bool
	)
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, intervalKeyPrefix) || key != intervalKeyPrefix+platform {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return Entry{}, false, errors.Wrap(err, "decode sync journal entry")
		}
		last = entry
		found = true
	}
	return last, found, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("sync journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
