package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eralp/pomotron/internal/clock"
)

// FileStore keeps one JSON file per key under a state directory. Writes go
// through a temp file + os.Rename so each value lands atomically, and an
// fsnotify watcher on the directory turns writes by other processes into
// Subscribe notifications.
type FileStore struct {
	dir   string
	quota int64
	clk   clock.Clock
	log   *zap.Logger

	mu          sync.Mutex
	unavailable bool
	migrations  map[migrationKey]MigrateFunc
	subs        map[int]func(Change)
	nextSub     int
	selfWrites  map[string]int // filenames we just wrote, to skip our own fsnotify events
	onQuota     func(QuotaEvent)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFile opens (or creates) a file-backed store rooted at dir. Construction
// never fails outright: if the directory or watcher cannot be set up the
// store runs in degraded in-memory-less mode where Get and Set report false.
func NewFile(dir string, quota int64, clk clock.Clock, log *zap.Logger) *FileStore {
	s := &FileStore{
		dir:        dir,
		quota:      quota,
		clk:        clk,
		log:        log,
		migrations: make(map[migrationKey]MigrateFunc),
		subs:       make(map[int]func(Change)),
		selfWrites: make(map[string]int),
		done:       make(chan struct{}),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("storage unavailable, continuing without persistence",
			zap.String("dir", dir), zap.Error(err))
		s.unavailable = true
		return s
	}

	w, err := fsnotify.NewWatcher()
	if err == nil {
		err = w.Add(dir)
	}
	if err != nil {
		// The store still works, it just cannot see external writes.
		log.Warn("storage watcher unavailable, cross-process sync disabled", zap.Error(err))
	} else {
		s.watcher = w
		go s.watch()
	}
	return s
}

// RegisterMigration installs the transform applied to payloads of key written
// at version from. Migrations chain until the payload reaches CurrentVersion.
func (s *FileStore) RegisterMigration(key string, from int, fn MigrateFunc) {
	s.mu.Lock()
	s.migrations[migrationKey{key, from}] = fn
	s.mu.Unlock()
}

// OnQuotaExceeded sets the callback fired when a write is rejected by the
// size ceiling.
func (s *FileStore) OnQuotaExceeded(fn func(QuotaEvent)) {
	s.mu.Lock()
	s.onQuota = fn
	s.mu.Unlock()
}

func (s *FileStore) Get(key string, out any) bool {
	s.mu.Lock()
	if s.unavailable {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("storage read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn("storage payload corrupt, using defaults",
			zap.String("key", key), zap.Error(err))
		return false
	}

	data, migrated, err := s.migrate(key, env)
	if err != nil {
		s.log.Warn("storage migration failed, using defaults",
			zap.String("key", key), zap.Int("from", env.Version), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("storage value corrupt, using defaults",
			zap.String("key", key), zap.Error(err))
		return false
	}
	if migrated {
		// Persist the migrated shape so the chain runs once.
		s.writeEnvelope(key, envelope{Version: CurrentVersion, SavedAt: s.clk.Now(), Data: data})
	}
	return true
}

func (s *FileStore) Set(key string, v any) bool {
	s.mu.Lock()
	if s.unavailable {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("storage marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	raw, err := json.Marshal(envelope{Version: CurrentVersion, SavedAt: s.clk.Now(), Data: data})
	if err != nil {
		s.log.Warn("storage marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}

	// The quota is charged for the envelope that lands on disk, not the inner
	// payload.
	if !s.hasSpace(key, int64(len(raw))) {
		s.log.Warn("storage quota exceeded, write rejected",
			zap.String("key", key), zap.Int("size", len(raw)))
		s.mu.Lock()
		fn := s.onQuota
		s.mu.Unlock()
		if fn != nil {
			fn(QuotaEvent{Key: key, Size: int64(len(raw))})
		}
		return false
	}

	if !s.writeRaw(key, raw) {
		return false
	}
	s.notify(Change{Key: key})
	return true
}

func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	if s.unavailable {
		s.mu.Unlock()
		return
	}
	name := s.filename(key)
	s.selfWrites[name]++
	s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil {
		// Nothing was deleted, so no fsnotify event will ever consume the
		// suppression token; take it back or it swallows a future external
		// change for this key.
		s.mu.Lock()
		if s.selfWrites[name] > 0 {
			s.selfWrites[name]--
			if s.selfWrites[name] == 0 {
				delete(s.selfWrites, name)
			}
		}
		s.mu.Unlock()
		if !os.IsNotExist(err) {
			s.log.Warn("storage remove failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.notify(Change{Key: key, Removed: true})
}

func (s *FileStore) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *FileStore) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *FileStore) migrate(key string, env envelope) (data json.RawMessage, migrated bool, err error) {
	data = env.Data
	for v := env.Version; v < CurrentVersion; v++ {
		s.mu.Lock()
		fn, ok := s.migrations[migrationKey{key, v}]
		s.mu.Unlock()
		if !ok {
			return nil, false, fmt.Errorf("no migration for %q from version %d", key, v)
		}
		data, err = fn(data)
		if err != nil {
			return nil, false, err
		}
		migrated = true
	}
	return data, migrated, nil
}

func (s *FileStore) writeEnvelope(key string, env envelope) bool {
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Warn("storage marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return s.writeRaw(key, raw)
}

func (s *FileStore) writeRaw(key string, raw []byte) bool {
	name := s.filename(key)
	s.mu.Lock()
	s.selfWrites[name]++
	s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		s.log.Warn("storage write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.log.Warn("storage write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		s.log.Warn("storage write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		s.log.Warn("storage write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// hasSpace checks the total state-directory size against the ceiling,
// accounting for the key's existing file being replaced.
func (s *FileStore) hasSpace(key string, newSize int64) bool {
	if s.quota <= 0 {
		return true
	}
	var used int64
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return true
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		used += info.Size()
	}
	var existing int64
	if info, err := os.Stat(s.path(key)); err == nil {
		existing = info.Size()
	}
	return used-existing+newSize < s.quota
}

func (s *FileStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			s.mu.Lock()
			if s.selfWrites[name] > 0 {
				s.selfWrites[name]--
				if s.selfWrites[name] == 0 {
					delete(s.selfWrites, name)
				}
				s.mu.Unlock()
				continue
			}
			s.mu.Unlock()
			s.notify(Change{
				Key:      strings.TrimSuffix(name, ".json"),
				Removed:  ev.Has(fsnotify.Remove),
				External: true,
			})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("storage watcher error", zap.Error(err))
		}
	}
}

func (s *FileStore) notify(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *FileStore) filename(key string) string {
	return key + ".json"
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, s.filename(key))
}
