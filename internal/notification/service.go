package notification

import (
	"sync"
	"time"
)

// Notification is one fire-and-forget message for a department's manager,
// e.g. the summary of a bulk review action.
type Notification struct {
	DepartmentID string    `json:"department_id"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store keeps undelivered notifications per department in memory. Delivery is
// best effort; the review engine never depends on it.
type Store struct {
	mu     sync.Mutex
	byDept map[string][]Notification
}

func NewStore() *Store {
	return &Store{byDept: make(map[string][]Notification)}
}

func (s *Store) Push(departmentID, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDept[departmentID] = append(s.byDept[departmentID], Notification{
		DepartmentID: departmentID,
		Summary:      summary,
		CreatedAt:    time.Now().UTC(),
	})
}

// Drain returns and clears the pending notifications for one department.
func (s *Store) Drain(departmentID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.byDept[departmentID]
	delete(s.byDept, departmentID)
	return out
}

// Pending returns the undelivered count without clearing.
func (s *Store) Pending(departmentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byDept[departmentID])
}

var globalStore = NewStore()

// Push adds a notification to the process-wide store.
func Push(departmentID, summary string) {
	globalStore.Push(departmentID, summary)
}

// Drain empties the process-wide store for one department.
func Drain(departmentID string) []Notification {
	return globalStore.Drain(departmentID)
}

// Pending reports the process-wide undelivered count for one department.
func Pending(departmentID string) int {
	return globalStore.Pending(departmentID)
}
