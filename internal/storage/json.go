package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ycwei/probroll/internal/models"
)

// JSONStorage keeps the whole ledger in one JSON file. Every mutation
// rewrites the file through a temp-file rename so a crash mid-write never
// leaves a torn ledger behind.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	data     *ledgerData
	now      func() time.Time
}

type ledgerData struct {
	Positions   []models.Position `json:"positions"`
	LastUpdated time.Time         `json:"last_updated"`
}

// NewJSONStorage opens (or creates) a JSON ledger at path.
func NewJSONStorage(path string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: path,
		data:     &ledgerData{},
		now:      time.Now,
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}

	return s, nil
}

// Load reads the ledger file into memory.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}

	fresh := &ledgerData{}
	if err := json.Unmarshal(data, fresh); err != nil {
		return fmt.Errorf("parsing ledger %s: %w", s.filepath, err)
	}
	s.data = fresh
	return nil
}

// Save writes the ledger to disk atomically.
func (s *JSONStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *JSONStorage) saveLocked() error {
	s.data.LastUpdated = s.now().UTC()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpFile, s.filepath)
}

// ActivePositions sweeps expired rows, then returns the active ones.
func (s *JSONStorage) ActivePositions() []models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sweepExpiredLocked() {
		// Best effort; the sweep stays applied in memory even if the
		// write fails, and the next Save persists it.
		_ = s.saveLocked()
	}

	var active []models.Position
	for _, p := range s.data.Positions {
		if p.Status == models.StatusActive {
			active = append(active, p)
		}
	}
	return active
}

func (s *JSONStorage) sweepExpiredLocked() bool {
	today := s.now()
	swept := false
	for i := range s.data.Positions {
		p := &s.data.Positions[i]
		if p.Status == models.StatusActive && p.IsExpired(today) {
			if err := p.Close(ReasonExpired, today); err == nil {
				swept = true
			}
		}
	}
	return swept
}

// GetPositionByID returns a copy of the position with the given ID.
func (s *JSONStorage) GetPositionByID(id string) (*models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID == id {
			p := s.data.Positions[i]
			return &p, true
		}
	}
	return nil, false
}

// AddPosition appends a validated position and persists the ledger.
func (s *JSONStorage) AddPosition(pos *models.Position) error {
	if pos == nil {
		return fmt.Errorf("position must not be nil")
	}
	if err := pos.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID == pos.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, pos.ID)
		}
	}

	s.data.Positions = append(s.data.Positions, *pos)
	return s.saveLocked()
}

// UpdateExecProb stores a freshly computed execution probability.
func (s *JSONStorage) UpdateExecProb(id string, prob float64) error {
	if prob < 0 || prob > 1 {
		return fmt.Errorf("exec prob %.4f outside [0,1]", prob)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID != id {
			continue
		}
		if s.data.Positions[i].Status == models.StatusClosed {
			return fmt.Errorf("%w: %s", ErrPositionClosed, id)
		}
		s.data.Positions[i].ExecProb = prob
		return s.saveLocked()
	}
	return fmt.Errorf("%w: %s", ErrPositionNotFound, id)
}

// ClosePosition transitions a position to Closed with the given reason.
func (s *JSONStorage) ClosePosition(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Positions {
		if s.data.Positions[i].ID != id {
			continue
		}
		if s.data.Positions[i].Status == models.StatusClosed {
			return fmt.Errorf("%w: %s", ErrPositionClosed, id)
		}
		if err := s.data.Positions[i].Close(reason, s.now()); err != nil {
			return err
		}
		return s.saveLocked()
	}
	return fmt.Errorf("%w: %s", ErrPositionNotFound, id)
}

// History returns every position, active and closed, oldest first.
func (s *JSONStorage) History() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Position(nil), s.data.Positions...)
}

// Statistics summarizes the ledger.
func (s *JSONStorage) Statistics() *Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStatistics(s.data.Positions)
}
