// Package datastore is a small JSON-file key/value store. Values live in
// memory and are flushed to disk periodically and on Close, with atomic
// writes and rotating backups.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	ErrClosed        = errors.New("datastore is closed")
	ErrMemoryLimit   = errors.New("datastore memory limit exceeded")
	ErrChecksumMatch = errors.New("file checksum mismatch")
)

type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	MaxMemorySize    int64 // bytes, 0 = unlimited
	BackupCount      int
	Logger           zerolog.Logger
}

func DefaultConfig(filePath string) Config {
	return Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		MaxMemorySize:    100 * 1024 * 1024,
		BackupCount:      3,
		Logger:           zerolog.Nop(),
	}
}

type DataStore struct {
	saveMu       sync.Mutex
	mu           sync.RWMutex
	data         map[string]json.RawMessage
	cfg          Config
	log          zerolog.Logger
	memorySize   int64
	lastChecksum string
	closed       bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithConfig opens or creates the store file and starts auto-saving.
func NewWithConfig(cfg Config) (*DataStore, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("datastore file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create datastore directory")
	}

	ds := &DataStore{
		data: make(map[string]json.RawMessage),
		cfg:  cfg,
		log:  cfg.Logger.With().Str("component", "datastore").Logger(),
	}

	switch _, err := os.Stat(cfg.FilePath); {
	case errors.Is(err, os.ErrNotExist):
		if err := ds.writeFileAtomic([]byte("{}")); err != nil {
			return nil, errors.Wrap(err, "create datastore file")
		}
		ds.lastChecksum = checksum([]byte("{}"))
	case err != nil:
		return nil, errors.Wrap(err, "stat datastore file")
	default:
		if err := ds.load(); err != nil {
			return nil, err
		}
	}

	if cfg.AutoSaveInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		ds.cancel = cancel
		ds.wg.Add(1)
		go ds.autoSave(ctx)
	}
	return ds, nil
}

// Put marshals value and stores it under key.
func (ds *DataStore) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "marshal %q", key)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return ErrClosed
	}
	newSize := ds.memorySize - int64(len(ds.data[key])) + int64(len(raw))
	if ds.cfg.MaxMemorySize > 0 && newSize > ds.cfg.MaxMemorySize {
		return errors.Wrapf(ErrMemoryLimit, "put %q", key)
	}
	ds.memorySize = newSize
	ds.data[key] = raw
	return nil
}

// Get unmarshals the value under key into out. found is false for a
// missing key.
func (ds *DataStore) Get(key string, out any) (found bool, err error) {
	ds.mu.RLock()
	raw, ok := ds.data[key]
	closed := ds.closed
	ds.mu.RUnlock()

	if closed {
		return false, ErrClosed
	}
	if !ok {
		return false, nil
	}
	return true, errors.Wrapf(json.Unmarshal(raw, out), "unmarshal %q", key)
}

// Delete removes key. Missing keys are ignored.
func (ds *DataStore) Delete(key string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if raw, ok := ds.data[key]; ok {
		ds.memorySize -= int64(len(raw))
		delete(ds.data, key)
	}
}

// SaveToFile flushes to disk now.
func (ds *DataStore) SaveToFile() error {
	ds.mu.RLock()
	closed := ds.closed
	ds.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ds.save()
}

// Close stops auto-saving and writes a final snapshot. Calling it twice is
// a no-op.
func (ds *DataStore) Close() error {
	ds.mu.Lock()
	if ds.closed {
		ds.mu.Unlock()
		return nil
	}
	ds.closed = true
	ds.mu.Unlock()

	if ds.cancel != nil {
		ds.cancel()
	}
	ds.wg.Wait()
	return ds.save()
}

func (ds *DataStore) save() error {
	ds.saveMu.Lock()
	defer ds.saveMu.Unlock()

	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "marshal datastore")
	}

	sum := checksum(data)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if sum == ds.lastChecksum {
		return nil
	}

	if ds.cfg.BackupCount > 0 {
		if err := ds.createBackup(); err != nil {
			ds.log.Warn().Err(err).Msg("failed to create backup")
		}
	}
	if err := ds.writeFileAtomic(data); err != nil {
		return err
	}
	written, err := os.ReadFile(ds.cfg.FilePath)
	if err != nil {
		return errors.Wrap(err, "verify datastore file")
	}
	if checksum(written) != sum {
		return ErrChecksumMatch
	}
	ds.lastChecksum = sum
	return nil
}

func (ds *DataStore) load() error {
	raw, err := os.ReadFile(ds.cfg.FilePath)
	if err != nil {
		return errors.Wrap(err, "read datastore file")
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "datastore file is not valid JSON")
	}
	if data == nil {
		data = make(map[string]json.RawMessage)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.data = data
	ds.memorySize = 0
	for _, v := range data {
		ds.memorySize += int64(len(v))
	}
	ds.lastChecksum = checksum(raw)
	ds.log.Debug().Int("keys", len(data)).Msg("loaded datastore")
	return nil
}

// writeFileAtomic writes through a synced temp file and a rename.
func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmp := ds.cfg.FilePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "open temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "write temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "sync temp file")
	}
	f.Close()
	if err := os.Rename(tmp, ds.cfg.FilePath); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

func (ds *DataStore) createBackup() error {
	src, err := os.Open(ds.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := ds.cfg.FilePath + ".backup." + time.Now().Format("20060102_150405.000")
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	ds.pruneBackups()
	return nil
}

// pruneBackups keeps the newest BackupCount backups.
func (ds *DataStore) pruneBackups() {
	matches, err := filepath.Glob(ds.cfg.FilePath + ".backup.*")
	if err != nil || len(matches) <= ds.cfg.BackupCount {
		return
	}
	// timestamps in the name sort chronologically
	slices.Sort(matches)
	for _, old := range matches[:len(matches)-ds.cfg.BackupCount] {
		if err := os.Remove(old); err != nil {
			ds.log.Warn().Err(err).Str("file", old).Msg("failed to remove backup")
		}
	}
}

func (ds *DataStore) autoSave(ctx context.Context) {
	defer ds.wg.Done()
	ticker := time.NewTicker(ds.cfg.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ds.save(); err != nil {
				ds.log.Error().Err(err).Msg("auto-save failed")
			}
		}
	}
}

// Stats reports key count and approximate memory use.
func (ds *DataStore) Stats() map[string]any {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return map[string]any{
		"keys":        len(ds.data),
		"memory_size": ds.memorySize,
		"file_path":   ds.cfg.FilePath,
		"saved":       ds.lastChecksum != "",
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
