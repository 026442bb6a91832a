package identity

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanops/cleanops/internal/rbac"
)

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return Snapshot{}
	}
}

func TestBrokerDeliversToKeyOnly(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	mine, cancelMine := b.Subscribe("a")
	defer cancelMine()
	other, cancelOther := b.Subscribe("b")
	defer cancelOther()

	b.Publish("a", Anonymous())

	assert.Equal(t, Anonymous(), receive(t, mine))
	assert.Empty(t, other)
}

func TestBrokerKeepsLatestPendingSnapshot(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch, cancel := b.Subscribe("a")
	defer cancel()

	b.Publish("a", Pending())
	b.Publish("a", Authenticated(&rbac.User{ID: 1, Role: rbac.RoleOwner}))

	got := receive(t, ch)
	require.NotNil(t, got.Principal())
	assert.Equal(t, rbac.RoleOwner, got.Principal().Role)
	assert.Empty(t, ch)
}

func TestBrokerCancelIsIdempotent(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch, cancel := b.Subscribe("a")
	assert.Equal(t, 1, b.Subscribers("a"))

	cancel()
	cancel()

	assert.Equal(t, 0, b.Subscribers("a"))
	_, ok := <-ch
	assert.False(t, ok)
	b.Publish("a", Anonymous())
}

func TestBrokerCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("a")
	b.Close()
	b.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, lateCancel := b.Subscribe("a")
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok)
}

func TestBrokerConcurrentPublishAndCancel(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		ch, cancel := b.Subscribe("k")
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		go func() {
			defer wg.Done()
			b.Publish("k", Anonymous())
			cancel()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Subscribers("k"))
}
