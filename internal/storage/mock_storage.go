package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/ycwei/probroll/internal/models"
)

// MockStorage is an in-memory Interface implementation for tests. Failures
// can be scripted per operation.
type MockStorage struct {
	mu        sync.Mutex
	positions []models.Position
	failNext  map[string]error
	now       func() time.Time

	SaveCalls int
}

// Ensure MockStorage implements Interface.
var _ Interface = (*MockStorage)(nil)

// NewMockStorage creates an empty mock ledger.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		failNext: make(map[string]error),
		now:      time.Now,
	}
}

// FailNext makes the next call of the named operation ("add", "update",
// "close", "save", "load") return err.
func (m *MockStorage) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

// SetNow overrides the clock used for expiry sweeps and closes.
func (m *MockStorage) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MockStorage) takeFailure(op string) error {
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

// Load implements Interface.
func (m *MockStorage) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takeFailure("load")
}

// Save implements Interface.
func (m *MockStorage) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("save"); err != nil {
		return err
	}
	m.SaveCalls++
	return nil
}

// ActivePositions implements Interface, including the expiry sweep.
func (m *MockStorage) ActivePositions() []models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.now()
	var active []models.Position
	for i := range m.positions {
		p := &m.positions[i]
		if p.Status == models.StatusActive && p.IsExpired(today) {
			_ = p.Close(ReasonExpired, today)
		}
		if p.Status == models.StatusActive {
			active = append(active, *p)
		}
	}
	return active
}

// GetPositionByID implements Interface.
func (m *MockStorage) GetPositionByID(id string) (*models.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.positions {
		if m.positions[i].ID == id {
			p := m.positions[i]
			return &p, true
		}
	}
	return nil, false
}

// AddPosition implements Interface.
func (m *MockStorage) AddPosition(pos *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("add"); err != nil {
		return err
	}
	if pos == nil {
		return fmt.Errorf("position must not be nil")
	}
	if err := pos.Validate(); err != nil {
		return err
	}
	for i := range m.positions {
		if m.positions[i].ID == pos.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, pos.ID)
		}
	}
	m.positions = append(m.positions, *pos)
	return nil
}

// UpdateExecProb implements Interface.
func (m *MockStorage) UpdateExecProb(id string, prob float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("update"); err != nil {
		return err
	}
	if prob < 0 || prob > 1 {
		return fmt.Errorf("exec prob %.4f outside [0,1]", prob)
	}
	for i := range m.positions {
		if m.positions[i].ID != id {
			continue
		}
		if m.positions[i].Status == models.StatusClosed {
			return fmt.Errorf("%w: %s", ErrPositionClosed, id)
		}
		m.positions[i].ExecProb = prob
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPositionNotFound, id)
}

// ClosePosition implements Interface.
func (m *MockStorage) ClosePosition(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("close"); err != nil {
		return err
	}
	for i := range m.positions {
		if m.positions[i].ID != id {
			continue
		}
		if m.positions[i].Status == models.StatusClosed {
			return fmt.Errorf("%w: %s", ErrPositionClosed, id)
		}
		return m.positions[i].Close(reason, m.now())
	}
	return fmt.Errorf("%w: %s", ErrPositionNotFound, id)
}

// History implements Interface.
func (m *MockStorage) History() []models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Position(nil), m.positions...)
}

// Statistics implements Interface.
func (m *MockStorage) Statistics() *Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return computeStatistics(m.positions)
}
