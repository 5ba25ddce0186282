package registry

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testGrace = 100 * time.Millisecond

func TestLifecycle_Attach_Unknown_Credential(t *testing.T) {
	req := require.New(t)
	reg := New()

	err := reg.Attach("missing", NewOutbound(1))
	req.ErrorIs(err, ErrNotFound)

	_, err = reg.Register("Alice")
	req.NoError(err)
	req.ErrorIs(reg.Attach("missing", nil), ErrNilOutbound)
}

func TestLifecycle_Connect_Disconnect_Expire(t *testing.T) {
	req := require.New(t)
	var evicted atomic.Int32
	reg := New(WithGracePeriod(testGrace), WithEvictionHook(func(c Client) {
		if c.Name == "Bob" && c.State == StateGrace {
			evicted.Add(1)
		}
	}))

	credential, err := reg.Register("Bob")
	req.NoError(err)

	// When Bob connects
	out := NewOutbound(4)
	req.NoError(reg.Attach(credential, out))
	bob, err := reg.FindByCredential(credential)
	req.NoError(err)
	req.Equal(StateConnected, bob.State)
	req.Same(out, bob.Outbound)

	// And disconnects
	reg.Detach(credential, out)
	bob, err = reg.FindByCredential(credential)
	req.NoError(err)
	req.Equal(StateGrace, bob.State)
	req.Nil(bob.Outbound)
	req.True(out.Closed())

	// Then he is evicted once the grace period ends
	req.Eventually(func() bool {
		_, err := reg.FindByCredential(credential)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err = reg.FindByName("bob")
	req.ErrorIs(err, ErrNotFound)
	req.Equal(int32(1), evicted.Load())
}

func TestLifecycle_Reconnect_Within_Grace_Cancels_Eviction(t *testing.T) {
	req := require.New(t)
	reg := New(WithGracePeriod(testGrace))

	credential, err := reg.Register("Bob")
	req.NoError(err)
	first := NewOutbound(4)
	req.NoError(reg.Attach(credential, first))
	reg.Detach(credential, first)

	// When Bob reconnects before the grace period ends
	second := NewOutbound(4)
	req.NoError(reg.Attach(credential, second))

	// Then he outlives the original deadline with the same identity
	time.Sleep(3 * testGrace)
	bob, err := reg.FindByCredential(credential)
	req.NoError(err)
	req.Equal("Bob", bob.Name)
	req.Equal(StateConnected, bob.State)
	req.Same(second, bob.Outbound)
}

func TestLifecycle_Detach_Twice_Starts_One_Timer(t *testing.T) {
	req := require.New(t)
	var evicted atomic.Int32
	reg := New(WithGracePeriod(testGrace), WithEvictionHook(func(Client) {
		evicted.Add(1)
	}))

	credential, err := reg.Register("Bob")
	req.NoError(err)
	out := NewOutbound(4)
	req.NoError(reg.Attach(credential, out))

	reg.Detach(credential, out)
	reg.Detach(credential, out)
	reg.Detach(credential, nil)

	req.Equal(Stats{Grace: 1}, reg.Stats())

	// Reattaching cancels the only timer, so nothing fires afterwards
	req.NoError(reg.Attach(credential, NewOutbound(4)))
	time.Sleep(3 * testGrace)

	_, err = reg.FindByCredential(credential)
	req.NoError(err)
	req.Zero(evicted.Load())
}

func TestLifecycle_Detach_Never_Connected_Is_Noop(t *testing.T) {
	req := require.New(t)
	reg := New(WithGracePeriod(testGrace))

	credential, err := reg.Register("Bob")
	req.NoError(err)

	reg.Detach(credential, nil)
	reg.Detach("missing", nil)

	time.Sleep(2 * testGrace)
	bob, err := reg.FindByCredential(credential)
	req.NoError(err)
	req.Equal(StateRegistered, bob.State)
}

func TestLifecycle_Stale_Timer_Does_Not_Evict(t *testing.T) {
	req := require.New(t)
	reg := New(WithGracePeriod(testGrace))

	credential, err := reg.Register("Bob")
	req.NoError(err)

	// Given a first disconnect at t0
	first := NewOutbound(1)
	req.NoError(reg.Attach(credential, first))
	reg.Detach(credential, first)

	// And a reconnect followed by a second disconnect at about t0+60ms
	time.Sleep(60 * time.Millisecond)
	second := NewOutbound(1)
	req.NoError(reg.Attach(credential, second))
	reg.Detach(credential, second)

	// When the first timer's deadline passes
	time.Sleep(60 * time.Millisecond)

	// Then Bob is still in his second grace period
	bob, err := reg.FindByCredential(credential)
	req.NoError(err)
	req.Equal(StateGrace, bob.State)

	// And the second timer evicts him
	req.Eventually(func() bool {
		_, err := reg.FindByCredential(credential)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLifecycle_Superseded_Connection_Cannot_Detach_Replacement(t *testing.T) {
	req := require.New(t)
	reg := New(WithGracePeriod(testGrace))

	credential, err := reg.Register("Bob")
	req.NoError(err)

	old := NewOutbound(1)
	req.NoError(reg.Attach(credential, old))

	// When a second connection attaches with the same credential
	replacement := NewOutbound(1)
	req.NoError(reg.Attach(credential, replacement))

	// Then the old outbound is closed
	req.True(old.Closed())

	// And its late disconnect leaves the replacement attached
	reg.Detach(credential, old)
	bob, err := reg.FindByCredential(credential)
	req.NoError(err)
	req.Equal(StateConnected, bob.State)
	req.Same(replacement, bob.Outbound)
}

func TestLifecycle_Remove_During_Grace(t *testing.T) {
	req := require.New(t)
	var evicted atomic.Int32
	reg := New(WithGracePeriod(testGrace), WithEvictionHook(func(Client) {
		evicted.Add(1)
	}))

	credential, err := reg.Register("Bob")
	req.NoError(err)
	out := NewOutbound(1)
	req.NoError(reg.Attach(credential, out))
	reg.Detach(credential, out)

	reg.Remove(credential)
	time.Sleep(2 * testGrace)

	req.Zero(evicted.Load())
	req.Empty(reg.Snapshot())
}

func TestLifecycle_Close_Stops_Timers_And_Outbounds(t *testing.T) {
	req := require.New(t)
	reg := New(WithGracePeriod(testGrace))

	a, err := reg.Register("a")
	req.NoError(err)
	b, err := reg.Register("b")
	req.NoError(err)

	outA := NewOutbound(1)
	req.NoError(reg.Attach(a, outA))
	outB := NewOutbound(1)
	req.NoError(reg.Attach(b, outB))
	reg.Detach(b, outB)

	reg.Close()
	reg.Close()

	req.True(outA.Closed())
	req.ErrorIs(reg.Attach(a, NewOutbound(1)), ErrClosed)

	time.Sleep(2 * testGrace)
	req.Len(reg.Snapshot(), 2)
}
