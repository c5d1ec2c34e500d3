package chronology_test

import (
	"testing"
	"time"

	"github.com/bloomberg/ntf-core-sub027/chronology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireOrdersByDeadline(t *testing.T) {
	w := chronology.New()
	base := time.Now()
	var fired []int

	w.Add(base.Add(30*time.Millisecond), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		fired = append(fired, 3)
	}, nil)
	w.Add(base.Add(10*time.Millisecond), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		fired = append(fired, 1)
	}, nil)
	w.Add(base.Add(20*time.Millisecond), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		fired = append(fired, 2)
	}, nil)

	n := w.Fire(base.Add(100 * time.Millisecond))
	require.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, fired)
}

func TestOneShotFiresOnce(t *testing.T) {
	w := chronology.New()
	base := time.Now()
	count := 0
	w.Add(base.Add(time.Millisecond), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		count++
	}, nil)

	w.Fire(base.Add(time.Second))
	w.Fire(base.Add(2 * time.Second))
	assert.Equal(t, 1, count)
}

func TestPeriodicDoesNotAccumulateDrift(t *testing.T) {
	w := chronology.New()
	base := time.Now()
	var deadlines []time.Time
	w.Add(base.Add(10*time.Millisecond), 10*time.Millisecond, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		deadlines = append(deadlines, deadline)
	}, nil)

	for i := 1; i <= 5; i++ {
		w.Fire(base.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	require.Len(t, deadlines, 5)
	for i, d := range deadlines {
		want := base.Add(time.Duration(i+1) * 10 * time.Millisecond)
		assert.True(t, d.Equal(want), "deadline %d: got %v want %v", i, d, want)
	}
}

func TestCancelPreventsFiredEvent(t *testing.T) {
	w := chronology.New()
	base := time.Now()
	var classes []chronology.Classifier
	id := w.Add(base.Add(time.Hour), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		classes = append(classes, class)
	}, nil)

	require.True(t, w.Remove(id))
	w.Fire(base.Add(2 * time.Hour))

	require.Len(t, classes, 1)
	assert.Equal(t, chronology.Canceled, classes[0])
}

func TestRemoveUnknownIDReturnsFalse(t *testing.T) {
	w := chronology.New()
	assert.False(t, w.Remove(9999))
}

func TestCloseFiresAllPendingAsClosed(t *testing.T) {
	w := chronology.New()
	base := time.Now()
	var classes []chronology.Classifier
	w.Add(base.Add(time.Hour), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		classes = append(classes, class)
	}, nil)
	w.Add(base.Add(2*time.Hour), 0, func(now, deadline time.Time, drift time.Duration, class chronology.Classifier) {
		classes = append(classes, class)
	}, nil)

	w.Close()
	require.Len(t, classes, 2)
	assert.Equal(t, chronology.Closed, classes[0])
	assert.Equal(t, chronology.Closed, classes[1])
}

func TestNextDeadlineReflectsEarliest(t *testing.T) {
	w := chronology.New()
	_, ok := w.NextDeadline()
	assert.False(t, ok)

	base := time.Now()
	early := base.Add(5 * time.Millisecond)
	w.Add(base.Add(50*time.Millisecond), 0, func(time.Time, time.Time, time.Duration, chronology.Classifier) {}, nil)
	w.Add(early, 0, func(time.Time, time.Time, time.Duration, chronology.Classifier) {}, nil)

	d, ok := w.NextDeadline()
	require.True(t, ok)
	assert.True(t, d.Equal(early))
}

func TestEqualDeadlinesBreakTiesByInsertionOrder(t *testing.T) {
	w := chronology.New()
	base := time.Now()
	deadline := base.Add(10 * time.Millisecond)
	var order []int
	w.Add(deadline, 0, func(time.Time, time.Time, time.Duration, chronology.Classifier) { order = append(order, 1) }, nil)
	w.Add(deadline, 0, func(time.Time, time.Time, time.Duration, chronology.Classifier) { order = append(order, 2) }, nil)
	w.Add(deadline, 0, func(time.Time, time.Time, time.Duration, chronology.Classifier) { order = append(order, 3) }, nil)

	w.Fire(base.Add(time.Second))
	assert.Equal(t, []int{1, 2, 3}, order)
}
