package notification

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePushDrain(t *testing.T) {
	s := NewStore()
	s.Push("D1", "3 budget line(s) approved")
	s.Push("D1", "1 budget line(s) rejected")
	s.Push("D2", "revision requested")

	assert.Equal(t, 2, s.Pending("D1"))
	assert.Equal(t, 1, s.Pending("D2"))
	assert.Equal(t, 0, s.Pending("D3"))

	got := s.Drain("D1")
	require.Len(t, got, 2)
	assert.Equal(t, "3 budget line(s) approved", got[0].Summary)
	assert.Equal(t, "D1", got[0].DepartmentID)
	assert.False(t, got[0].CreatedAt.IsZero())

	assert.Equal(t, 0, s.Pending("D1"), "drain clears the queue")
	assert.Empty(t, s.Drain("D1"))
	assert.Equal(t, 1, s.Pending("D2"), "other departments untouched")
}

func TestStoreConcurrentPush(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Push("D1", "msg")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Pending("D1"))
}
