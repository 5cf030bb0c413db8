package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairState struct {
	Heading  int
	Cardinal int
}

func next[T any](t *testing.T, c <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-c:
		require.True(t, ok)
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func TestStore_LateObserverGetsLatestThenLive(t *testing.T) {
	s := New(0)
	defer s.Close()

	for i := 1; i <= 5; i++ {
		s.Set(i)
	}

	sub := s.Subscribe()
	defer sub.Close()

	assert.Equal(t, 5, next(t, sub.C()))

	s.Set(6)
	assert.Equal(t, 6, next(t, sub.C()))

	select {
	case v := <-sub.C():
		t.Fatalf("unexpected extra snapshot %d", v)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, uint64(6), s.Version())
}

func TestStore_IndependentObservers(t *testing.T) {
	s := New("idle")
	defer s.Close()

	a := s.Subscribe()
	defer a.Close()
	s.Set("loading")
	b := s.Subscribe()
	defer b.Close()
	s.Set("loaded")

	assert.Equal(t, "idle", next(t, a.C()))
	assert.Equal(t, "loading", next(t, a.C()))
	assert.Equal(t, "loaded", next(t, a.C()))

	assert.Equal(t, "loading", next(t, b.C()))
	assert.Equal(t, "loaded", next(t, b.C()))
	assert.Equal(t, 2, s.Observers())
}

func TestStore_ConcurrentUpdatesAreAtomic(t *testing.T) {
	s := New(pairState{})
	defer s.Close()

	sub := s.Subscribe()
	defer sub.Close()

	const writers, perWriter = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Update(func(p pairState) pairState {
					p.Heading++
					p.Cardinal = p.Heading * 2
					return p
				})
			}
		}()
	}
	wg.Wait()

	final := s.Value()
	assert.Equal(t, writers*perWriter, final.Heading)

	prev := -1
	for i := 0; i <= writers*perWriter; i++ {
		snap := next(t, sub.C())
		assert.Equal(t, snap.Heading*2, snap.Cardinal, "partial snapshot observed")
		assert.Equal(t, prev+1, snap.Heading, "snapshot skipped or duplicated")
		prev = snap.Heading
	}
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	s := New(1)
	sub := s.Subscribe()
	s.Close()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.C():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	s.Set(2)
	assert.Equal(t, 2, s.Value())
}
