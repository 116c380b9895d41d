package queue

import (
	"testing"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	sim := driver.NewSimulator(2_000_000, 4.0)
	require.NoError(t, sim.Initialize())
	q := New(sim)
	q.Start(nil)
	t.Cleanup(q.Stop)
	return q
}

func TestQueueSetAndReadPosition(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)

	setRes := q.GetCommandResult(driver.Command{
		Kind: driver.CmdSetPosition, Axis: axis.Primary,
		Payload: driver.CommandPayload{TargetDeg: 45},
	}).Wait()
	require.True(t, setRes.OK)

	readRes := q.GetCommandResult(driver.Command{Kind: driver.CmdReadPosition, Axis: axis.Primary}).Wait()
	require.True(t, readRes.OK)
	assert.InDelta(t, 45.0, readRes.Value.Float64, 1e-6)
}

func TestQueueAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)

	first := q.NewID()
	second := q.NewID()
	assert.Greater(t, second, first)
}

func TestQueueNotRunningFailsFast(t *testing.T) {
	t.Parallel()
	sim := driver.NewSimulator(2_000_000, 4.0)
	require.NoError(t, sim.Initialize())
	q := New(sim)
	// never started

	res := q.GetCommandResult(driver.Command{Kind: driver.CmdReadPosition, Axis: axis.Primary}).Wait()
	assert.False(t, res.OK)
	assert.NotNil(t, res.Err)
}

func TestQueueStopDeliversSyntheticFailures(t *testing.T) {
	t.Parallel()
	sim := driver.NewSimulator(2_000_000, 4.0)
	require.NoError(t, sim.Initialize())
	q := New(sim)
	q.Start(nil)

	q.Stop()

	res := q.GetCommandResult(driver.Command{Kind: driver.CmdReadPosition, Axis: axis.Primary}).Wait()
	assert.False(t, res.OK)
	assert.NotNil(t, res.Err)
}

func TestQueueSetPulsingHoldsFlagForCallerOwnedDuration(t *testing.T) {
	t.Parallel()

	var snapshots []Properties
	sim := driver.NewSimulator(2_000_000, 4.0)
	require.NoError(t, sim.Initialize())
	q := New(sim)
	q.Start(func(p Properties) { snapshots = append(snapshots, p) })
	t.Cleanup(q.Stop)

	// The dispatch itself is instantaneous; SetPulsing is what holds the
	// property true for however long the caller (the Slew Engine) owns the
	// pulse, independent of how fast the driver command returns.
	q.SetPulsing(axis.Primary, true)
	res := q.GetCommandResult(driver.Command{
		Kind: driver.CmdPulseGuide, Axis: axis.Primary,
		Payload: driver.CommandPayload{RateDegSec: 0.01, DurationMs: 10, Direction: 1},
	}).Wait()
	require.True(t, res.OK)
	assert.True(t, q.Properties().IsPulseGuidingRA, "flag must still be set immediately after dispatch returns")

	q.SetPulsing(axis.Primary, false)
	require.NotEmpty(t, snapshots)
	assert.False(t, q.Properties().IsPulseGuidingRA, "pulse flag must clear once the caller releases it")
}

func TestQueueRecordsStepsOnPositionRead(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)

	setRes := q.GetCommandResult(driver.Command{
		Kind: driver.CmdSetPosition, Axis: axis.Secondary,
		Payload: driver.CommandPayload{TargetDeg: 10},
	}).Wait()
	require.True(t, setRes.OK)

	readRes := q.GetCommandResult(driver.Command{Kind: driver.CmdReadPositionWithTime, Axis: axis.Secondary}).Wait()
	require.True(t, readRes.OK)

	props := q.Properties()
	assert.Equal(t, readRes.Value.Int64, props.Steps[1])
	assert.NotZero(t, readRes.Value.Int64)
}

func TestQueuePreemptAxisClearsInflight(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)

	// No goto is enqueued here: this only exercises that PreemptAxis does not
	// panic and that a fresh non-motion command on the axis still completes
	// normally afterward.
	q.PreemptAxis(axis.Primary)

	res := q.GetCommandResult(driver.Command{
		Kind: driver.CmdSetPosition, Axis: axis.Primary,
		Payload: driver.CommandPayload{TargetDeg: 5},
	}).Wait()
	assert.True(t, res.OK)
}

func TestQueueStopIsIdempotent(t *testing.T) {
	t.Parallel()
	sim := driver.NewSimulator(2_000_000, 4.0)
	require.NoError(t, sim.Initialize())
	q := New(sim)
	q.Start(nil)

	q.Stop()
	assert.NotPanics(t, q.Stop)
}

func TestQueueIsRunningReflectsLifecycle(t *testing.T) {
	t.Parallel()
	sim := driver.NewSimulator(2_000_000, 4.0)
	require.NoError(t, sim.Initialize())
	q := New(sim)

	assert.False(t, q.IsRunning())
	q.Start(nil)
	// setRunning publishes synchronously from Start, so this should be visible
	// immediately without a sleep.
	assert.True(t, q.IsRunning())
	q.Stop()
	assert.False(t, q.IsRunning())
}
