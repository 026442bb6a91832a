package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cleanops/cleanops/internal/identity"
)

// Navigator performs the redirect side effect for a mounted component.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(target string) { f(target) }

var epochs atomic.Uint64

// Component is a mounted gate that re-evaluates as identity updates arrive.
// Every update is tagged with the epoch issued at mount; after Dispose the
// epoch is retired and late updates are dropped.
type Component struct {
	gate     *Gate
	props    Props
	nav      Navigator
	onChange func(Decision)

	// emit serialises Apply and Dispose; mu guards the fields below it.
	emit       sync.Mutex
	mu         sync.Mutex
	epoch      uint64
	disposed   bool
	current    Decision
	hasCurrent bool
	redirected bool
}

// Mount creates a component in the Unhydrated state. nav and onChange may
// be nil.
func (g *Gate) Mount(props Props, nav Navigator, onChange func(Decision)) *Component {
	return &Component{
		gate:     g,
		props:    props,
		nav:      nav,
		onChange: onChange,
		epoch:    epochs.Add(1),
		current:  Decision{State: Unhydrated, Outcome: RenderNothing},
	}
}

// Epoch returns the token updates must carry. It is zero once disposed.
func (c *Component) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return 0
	}
	return c.epoch
}

// Decision returns the last committed decision.
func (c *Component) Decision() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Apply evaluates snap on behalf of epoch. It reports false without
// evaluating when the epoch is stale or the component is disposed. onChange
// runs only when the decision differs from the committed one, and the
// redirect runs at most once per mount, after the decision is committed.
// Callbacks run before Apply returns and must not call Dispose.
func (c *Component) Apply(epoch uint64, snap identity.Snapshot) bool {
	c.emit.Lock()
	defer c.emit.Unlock()

	c.mu.Lock()
	if c.disposed || epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	d := c.gate.evaluate(snap, c.props)
	changed := !c.hasCurrent || c.current != d
	c.current = d
	c.hasCurrent = true
	navigate := d.Outcome == Redirect && !c.redirected && c.nav != nil
	if navigate {
		c.redirected = true
	}
	c.mu.Unlock()

	c.gate.record(d)
	if changed && c.onChange != nil {
		c.onChange(d)
	}
	if navigate {
		c.nav.Navigate(d.RedirectTo)
	}
	return true
}

// Watch applies snapshots from updates until ctx ends, the channel closes,
// or the component is disposed.
func (c *Component) Watch(ctx context.Context, updates <-chan identity.Snapshot) {
	epoch := c.Epoch()
	if epoch == 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if !c.Apply(epoch, snap) {
				return
			}
		}
	}
}

// Dispose retires the component. It waits for an in-flight Apply, so no
// callback runs after it returns. It is idempotent.
func (c *Component) Dispose() {
	c.emit.Lock()
	defer c.emit.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	c.epoch = 0
}
