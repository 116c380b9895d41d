package driver

import (
	"testing"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorInitializeLifecycle(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 4.0)
	assert.False(t, s.IsInitialized())
	require.NoError(t, s.Initialize())
	assert.True(t, s.IsInitialized())
	s.Shutdown()
	assert.False(t, s.IsInitialized())
}

func TestSimulatorDefaultsOnInvalidConstructorArgs(t *testing.T) {
	t.Parallel()

	s := NewSimulator(0, 0)
	caps := s.Capabilities()
	assert.Equal(t, int64(9_024_000), caps.StepsPerRevolution[0])
	assert.Equal(t, 4.0, s.SlewRate)
}

func TestSimulatorSetAndGetAxisPosition(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 4.0)
	require.NoError(t, s.SetAxisPosition(axis.Primary, 37.5))

	got, ok := s.GetAxisPosition(axis.Primary)
	require.True(t, ok)
	assert.InDelta(t, 37.5, got, 1e-9)

	// the other axis is untouched
	other, ok := s.GetAxisPosition(axis.Secondary)
	require.True(t, ok)
	assert.InDelta(t, 0.0, other, 1e-9)
}

func TestSimulatorReadPositionReportsStepsViaFactorStep(t *testing.T) {
	t.Parallel()

	s := NewSimulator(1_296_000, 4.0) // factorStep = 360/1_296_000 = 1 arcsec/step
	require.NoError(t, s.SetAxisPosition(axis.Primary, 1.0))

	rv, err := s.SendCommand(Command{Kind: CmdReadPosition, Axis: axis.Primary})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rv.Float64, 1e-9)
	assert.Equal(t, int64(3600), rv.Int64) // one degree is 3600 arcsec-steps
}

func TestSimulatorReadPositionWithTimeStampsInstant(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 4.0)
	before := time.Now()
	rv, err := s.SendCommand(Command{Kind: CmdReadPositionWithTime, Axis: axis.Primary})
	require.NoError(t, err)
	assert.False(t, rv.Instant.Before(before))
	assert.False(t, rv.Instant.After(time.Now()))
}

func TestSimulatorStartAxisMotionIntegratesRate(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 4.0)
	require.NoError(t, s.StartAxisMotion(axis.Primary, 10.0)) // 10 deg/sec
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.IsMoving())

	got, _ := s.GetAxisPosition(axis.Primary)
	assert.Greater(t, got, 0.0, "position should have advanced under a nonzero rate")

	require.NoError(t, s.StopAxis(axis.Primary))
	assert.False(t, s.IsMoving())
}

func TestSimulatorGoToTargetReachesDestination(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 180.0) // fast slew so the test doesn't sleep long
	rv, err := s.SendCommand(Command{Kind: CmdGoToTarget, Axis: axis.Primary, Payload: CommandPayload{TargetDeg: 1.0}})
	require.NoError(t, err)
	assert.Equal(t, ResultValue{}, rv)

	assert.Eventually(t, func() bool {
		got, _ := s.GetAxisPosition(axis.Primary)
		return s.IsAxisStopped(axis.Primary) && got == 1.0
	}, time.Second, 5*time.Millisecond)
}

func TestSimulatorEmergencyStopHaltsBothAxes(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 4.0)
	require.NoError(t, s.StartAxisMotion(axis.Primary, 5.0))
	require.NoError(t, s.StartAxisMotion(axis.Secondary, 5.0))
	require.NoError(t, s.EmergencyStop())

	assert.True(t, s.IsAxisStopped(axis.Primary))
	assert.True(t, s.IsAxisStopped(axis.Secondary))
}

func TestSimulatorSendCommandUnimplementedKind(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 4.0)
	_, err := s.SendCommand(Command{Kind: CommandKind(999), Axis: axis.Primary})
	assert.Error(t, err)
}

func TestSimulatorReadStepsPerRevAndFactorStep(t *testing.T) {
	t.Parallel()

	s := NewSimulator(2_000_000, 4.0)
	rv, err := s.SendCommand(Command{Kind: CmdReadStepsPerRev, Axis: axis.Primary})
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), rv.Int64)

	rv, err = s.SendCommand(Command{Kind: CmdReadFactorStep, Axis: axis.Primary})
	require.NoError(t, err)
	assert.InDelta(t, 360.0/2_000_000, rv.Float64, 1e-12)
}
