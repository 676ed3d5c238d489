package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpdateDoesNotBlockOtherSessions(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	inSlow := make(chan struct{})
	release := make(chan struct{})
	slowDone := make(chan struct{})
	go func() {
		_ = s.Update(ctx, "slow", func(c *Cart) error {
			close(inSlow)
			<-release
			return nil
		})
		close(slowDone)
	}()
	<-inSlow

	// A long-running update in one session (the order commit's settle wait)
	// must not stall another session's cart.
	fastDone := make(chan struct{})
	go func() {
		_ = s.Update(ctx, "fast", func(c *Cart) error {
			c.AddItem(item(1, "10.00"), 1, nil)
			return nil
		})
		close(fastDone)
	}()
	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("update for another session queued behind an in-flight update")
	}

	viewed := make(chan struct{})
	go func() {
		s.View(ctx, "fast", func(c *Cart) {
			require.Equal(t, 1, c.ItemCount())
		})
		close(viewed)
	}()
	select {
	case <-viewed:
	case <-time.After(2 * time.Second):
		t.Fatal("view for another session queued behind an in-flight update")
	}

	close(release)
	<-slowDone
}

func TestUpdateSerializesWithinOneSession(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "s1", func(c *Cart) error {
				c.AddItem(item(1, "10.00"), 1, nil)
				return nil
			})
		}()
	}
	wg.Wait()

	s.View(ctx, "s1", func(c *Cart) {
		require.Equal(t, 20, c.ItemCount())
	})
}
