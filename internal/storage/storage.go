// Package storage keeps per-guild bot records in the datastore. Only the
// command audit trail is persisted; playback state never is.
package storage

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/keshon/domme-music/datastore"
)

const commandHistoryLimit = 20

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

// Record is everything stored for one guild.
type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
}

type Storage struct {
	mu sync.Mutex
	ds *datastore.DataStore
}

func New(filePath string, log zerolog.Logger) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.Logger = log
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open storage")
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) guildRecord(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, err
	}
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	return &record, nil
}

// ForgetGuild drops everything stored for the guild and flushes the file.
func (s *Storage) ForgetGuild(guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ds.Delete(guildID)
	return s.ds.SaveToFile()
}

// Stats describes the backing store.
func (s *Storage) Stats() map[string]any {
	return s.ds.Stats()
}

// AppendCommandToHistory records a command, keeping the newest
// commandHistoryLimit entries per guild.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	record.CommandsHistoryList = append(record.CommandsHistoryList, command)
	if n := len(record.CommandsHistoryList); n > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[n-commandHistoryLimit:]
	}
	return s.ds.Put(guildID, record)
}

// FetchCommandHistory returns the guild's recent commands, oldest first.
func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}
