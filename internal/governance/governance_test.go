package governance

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

var (
	governor = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newGov(delay time.Duration) (*Governance, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return New(governor, delay, discard(), WithClock(clock.now)), clock
}

func TestSetPendingGovernorRejectsZeroAddress(t *testing.T) {
	g, _ := newGov(time.Minute)
	err := g.SetPendingGovernor(governor, common.Address{})
	require.ErrorIs(t, err, domain.ErrZeroAddress)
	assert.Equal(t, common.Address{}, g.PendingGovernor())
}

func TestSetPendingGovernorRequiresGovernor(t *testing.T) {
	g, _ := newGov(time.Minute)
	err := g.SetPendingGovernor(bob, bob)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Equal(t, governor, g.Governor())
}

func TestTransferGovernanceTimelock(t *testing.T) {
	g, clock := newGov(time.Minute)
	require.NoError(t, g.SetPendingGovernor(governor, bob))

	// Before the delay elapses the transfer is rejected and state is
	// untouched.
	err := g.TransferGovernance(governor)
	require.ErrorIs(t, err, domain.ErrTooEarly)
	assert.Equal(t, governor, g.Governor())

	clock.advance(time.Minute)
	require.NoError(t, g.TransferGovernance(governor))
	assert.Equal(t, bob, g.Governor())
	assert.Equal(t, common.Address{}, g.PendingGovernor())

	// A second completion has nothing pending to act on.
	err = g.TransferGovernance(bob)
	require.ErrorIs(t, err, domain.ErrNoPendingGovernor)
}

func TestTransferGovernanceWithoutRequest(t *testing.T) {
	g, _ := newGov(time.Minute)
	err := g.TransferGovernance(governor)
	require.ErrorIs(t, err, domain.ErrNoPendingGovernor)
}

func TestGovernanceEventSink(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	sink := &recordingSink{}
	g := New(governor, time.Minute, discard(), WithClock(clock.now), WithEventSink(sink))

	require.NoError(t, g.SetPendingGovernor(governor, bob))
	clock.advance(2 * time.Minute)
	require.NoError(t, g.TransferGovernance(governor))

	require.Len(t, sink.changes, 1)
	assert.Equal(t, governor, sink.changes[0][0])
	assert.Equal(t, bob, sink.changes[0][1])
}

type recordingSink struct {
	changes [][2]common.Address
}

func (s *recordingSink) RebalanceExecuted(domain.RebalanceRecord) {}
func (s *recordingSink) GovernanceChanged(oldGov, newGov common.Address) {
	s.changes = append(s.changes, [2]common.Address{oldGov, newGov})
}
