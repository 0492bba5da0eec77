// Package storage persists the position ledger. Two backends are
// provided: a JSON file with atomic writes and a sqlite database.
package storage

import (
	"fmt"

	"github.com/ycwei/probroll/internal/models"
)

// Interface defines the contract for position ledger persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe and can safely call them from multiple
// goroutines.
//
// Reading active positions sweeps the ledger first: positions whose
// expiration has passed are closed with reason "expired" before the
// remaining active rows are returned.
type Interface interface {
	// Position management
	ActivePositions() []models.Position
	GetPositionByID(id string) (*models.Position, bool)
	AddPosition(pos *models.Position) error
	UpdateExecProb(id string, prob float64) error
	ClosePosition(id, reason string) error

	// Data persistence
	Save() error
	Load() error

	// Historical data and analytics
	History() []models.Position
	Statistics() *Statistics
}

// Statistics summarizes the ledger for dashboards and shutdown reports.
type Statistics struct {
	TotalPositions  int     `json:"total_positions"`
	ActivePositions int     `json:"active_positions"`
	ClosedPositions int     `json:"closed_positions"`
	ExpiredCount    int     `json:"expired_count"`
	RolledCount     int     `json:"rolled_count"`
	AvgExecProb     float64 `json:"avg_exec_prob"` // mean over active positions, 0..1
}

// Close reasons written by the engine. Anything else is treated as a
// manual close in the statistics.
const (
	ReasonExpired   = "expired"
	ReasonOutOfBand = "probability out of band"
)

// NewStorage creates a storage implementation for the given backend name.
func NewStorage(backend, path string) (Interface, error) {
	switch backend {
	case "", "json":
		return NewJSONStorage(path)
	case "sqlite":
		return NewSQLiteStorage(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Ensure both backends implement Interface.
var (
	_ Interface = (*JSONStorage)(nil)
	_ Interface = (*SQLiteStorage)(nil)
)

func computeStatistics(positions []models.Position) *Statistics {
	stats := &Statistics{TotalPositions: len(positions)}
	var probSum float64
	for _, p := range positions {
		switch p.Status {
		case models.StatusActive:
			stats.ActivePositions++
			probSum += p.ExecProb
		case models.StatusClosed:
			stats.ClosedPositions++
			switch p.ExitReason {
			case ReasonExpired:
				stats.ExpiredCount++
			case ReasonOutOfBand:
				stats.RolledCount++
			}
		}
	}
	if stats.ActivePositions > 0 {
		stats.AvgExecProb = probSum / float64(stats.ActivePositions)
	}
	return stats
}
