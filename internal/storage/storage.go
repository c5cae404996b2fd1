package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: not found")

// Storage keys
const (
	keySettings = "settings"
	keyStats    = "stats"
)

// Settings are the engine options that survive restarts.
type Settings struct {
	HashMB      int           `json:"hash_mb"`
	Difficulty  string        `json:"difficulty"`
	BookEnabled bool          `json:"book_enabled"`
	MoveTime    time.Duration `json:"move_time"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// DefaultSettings returns the settings used before anything was saved.
func DefaultSettings() *Settings {
	return &Settings{
		HashMB:      64,
		Difficulty:  "medium",
		BookEnabled: true,
		MoveTime:    0, // follow the difficulty preset
	}
}

// Outcome is the result of a finished game from the engine's side.
type Outcome int

const (
	OutcomeWin Outcome = iota
	OutcomeLoss
	OutcomeDraw
)

// ParseOutcome reads the argument of the USI gameover command.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "win":
		return OutcomeWin, nil
	case "lose":
		return OutcomeLoss, nil
	case "draw":
		return OutcomeDraw, nil
	}
	return 0, fmt.Errorf("unknown game outcome %q", s)
}

// GameStats stores results of the games the engine has played.
type GameStats struct {
	GamesPlayed    int            `json:"games_played"`
	Wins           int            `json:"wins"`
	Losses         int            `json:"losses"`
	Draws          int            `json:"draws"`
	WinsByDiff     map[string]int `json:"wins_by_difficulty"`
	LongestWinStrk int            `json:"longest_win_streak"`
	CurrentStreak  int            `json:"current_streak"`
}

// NewGameStats returns empty game statistics.
func NewGameStats() *GameStats {
	return &GameStats{WinsByDiff: make(map[string]int)}
}

// GetWinRate returns the win rate as a percentage (0-100).
func (s *GameStats) GetWinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.GamesPlayed) * 100
}

// Storage wraps BadgerDB for persistent storage.
type Storage struct {
	db *badger.DB
}

// Open opens (or creates) the database in dir.
func Open(dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenDefault opens the database in the platform data directory.
func OpenDefault() (*Storage, error) {
	dir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return Open(dir)
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory() (*Storage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Storage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Dir, err)
	}
	log.Debug().Str("dir", opts.Dir).Bool("in-memory", opts.InMemory).Msg("storage-open")
	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// getJSON decodes the value under key into v, or returns ErrNotFound.
func (s *Storage) getJSON(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// SaveSettings stores the settings.
func (s *Storage) SaveSettings(settings *Settings) error {
	settings.UpdatedAt = time.Now()
	return s.putJSON(keySettings, settings)
}

// LoadSettings loads the settings, returning defaults if none were saved.
func (s *Storage) LoadSettings() (*Settings, error) {
	settings := DefaultSettings()
	err := s.getJSON(keySettings, settings)
	if errors.Is(err, ErrNotFound) {
		return settings, nil
	}
	return settings, err
}

// LoadStats loads game statistics, returning empty stats if none exist.
func (s *Storage) LoadStats() (*GameStats, error) {
	stats := NewGameStats()
	err := s.getJSON(keyStats, stats)
	if errors.Is(err, ErrNotFound) {
		return stats, nil
	}
	if stats.WinsByDiff == nil {
		stats.WinsByDiff = make(map[string]int)
	}
	return stats, err
}

// RecordGame adds a finished game to the statistics.
func (s *Storage) RecordGame(outcome Outcome, difficulty string) (*GameStats, error) {
	stats, err := s.LoadStats()
	if err != nil {
		return nil, err
	}

	stats.GamesPlayed++
	switch outcome {
	case OutcomeDraw:
		stats.Draws++
		stats.CurrentStreak = 0
	case OutcomeWin:
		stats.Wins++
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.LongestWinStrk {
			stats.LongestWinStrk = stats.CurrentStreak
		}
		stats.WinsByDiff[difficulty]++
	default:
		stats.Losses++
		stats.CurrentStreak = 0
	}

	if err := s.putJSON(keyStats, stats); err != nil {
		return nil, err
	}
	return stats, nil
}
