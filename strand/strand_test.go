package strand_test

import (
	"sync"
	"testing"

	"github.com/bloomberg/ntf-core-sub027/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentSubmissionsAllRun(t *testing.T) {
	s := strand.New()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			s.Execute(func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 100)
}

func TestNoConcurrentExecution(t *testing.T) {
	s := strand.New()
	var active atomicCounter
	var maxSeen int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Execute(func() {
				n := active.inc()
				if n > maxSeen {
					maxSeen = n
				}
				active.dec()
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, maxSeen, 1)
}

type atomicCounter struct {
	mu sync.Mutex
	n  int
}

func (c *atomicCounter) inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

func (c *atomicCounter) dec() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
}

func TestIsRunningInThisThread(t *testing.T) {
	s := strand.New()
	done := make(chan bool, 1)
	s.Execute(func() {
		done <- s.IsRunningInThisThread()
	})
	assert.True(t, <-done)
	assert.False(t, s.IsRunningInThisThread())
}

func TestReentrantExecuteDoesNotDeadlock(t *testing.T) {
	s := strand.New()
	var order []int
	done := make(chan struct{})
	s.Execute(func() {
		order = append(order, 1)
		s.Execute(func() {
			order = append(order, 2)
			close(done)
		})
	})
	<-done
	assert.Equal(t, []int{1, 2}, order)
}

func TestCurrentStrand(t *testing.T) {
	s := strand.New()
	assert.Nil(t, strand.Current())
	var seen *struct{}
	_ = seen
	s.Execute(func() {
		assert.Same(t, s, strand.Current())
	})
}
