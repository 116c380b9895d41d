package slew

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/driver"
	"github.com/draco-mount/alpaca-mount/internal/mtype"
	"github.com/draco-mount/alpaca-mount/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePositionReader reports full-stop immediately, letting the coarse and
// precision phases converge in a single poll tick instead of waiting on
// real axis motion.
type fakePositionReader struct {
	mu       sync.Mutex
	x, y     float64
	fullStop bool
}

func (f *fakePositionReader) ForceUpdate(ctx context.Context) error { return nil }

func (f *fakePositionReader) AxesXY() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y
}

func (f *fakePositionReader) IsFullStop() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fullStop, f.fullStop
}

func (f *fakePositionReader) setAxes(x, y float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y = x, y
}

func newTestEngine(t *testing.T, pos *fakePositionReader) (*Engine, *queue.Queue, *[]mtype.SlewType) {
	t.Helper()
	sim := driver.NewSimulator(2_000_000, 4.0)
	require.NoError(t, sim.Initialize())
	qu := queue.New(sim)
	qu.Start(nil)
	t.Cleanup(qu.Stop)

	states := &[]mtype.SlewType{}
	eng := New(qu, pos, nil, &mtype.CancellationHandles{}, true, 0, 0.01, func(s mtype.SlewType) {
		*states = append(*states, s)
	})
	return eng, qu, states
}

func TestEngineGotoConvergesAndReturnsToNone(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: true, x: 10, y: 10}
	eng, _, states := newTestEngine(t, pos)

	err := eng.Goto(context.Background(), mtype.SlewRaDec, 10, 10, false, nil)
	assert.NoError(t, err)
	require.NotEmpty(t, *states)
	assert.Equal(t, mtype.SlewNone, (*states)[len(*states)-1], "Goto must always leave SlewState at None")
}

func TestEngineGotoCancellation(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: false}
	eng, _, _ := newTestEngine(t, pos)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before the engine even starts polling

	err := eng.Goto(ctx, mtype.SlewRaDec, 45, 45, false, nil)
	assert.Error(t, err)
}

func TestEngineMoveAxisTracksAnyMoving(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: true}
	eng, _, _ := newTestEngine(t, pos)

	anyMoving, err := eng.MoveAxis(axis.Primary, 2.0)
	require.NoError(t, err)
	assert.True(t, anyMoving)

	anyMoving, err = eng.MoveAxis(axis.Primary, 0)
	require.NoError(t, err)
	assert.False(t, anyMoving, "stopping the only moving axis should clear anyMoving")
}

func TestEnginePulseGuideDropsBelowHalfMinimum(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: true}
	eng, _, _ := newTestEngine(t, pos)

	err := eng.PulseGuide(context.Background(), mtype.GuideRAPlus, 2, 0.01, 10)
	assert.NoError(t, err, "a pulse well below half the minimum is silently dropped")
}

func TestEnginePulseGuideRunsFullDuration(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: true}
	eng, _, _ := newTestEngine(t, pos)

	start := time.Now()
	err := eng.PulseGuide(context.Background(), mtype.GuideDecPlus, 20, 0.01, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEnginePulseGuideHoldsPropertyForFullDuration(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: true}
	eng, qu, _ := newTestEngine(t, pos)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.PulseGuide(context.Background(), mtype.GuideRAPlus, 30, 0.01, 10)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.True(t, qu.Properties().IsPulseGuidingRA, "property must stay set for the whole pulse, not just the dispatch instant")

	<-done
	assert.False(t, qu.Properties().IsPulseGuidingRA, "property must clear once the pulse completes")
}

func TestEngineSyncToAxes(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: true}
	eng, qu, _ := newTestEngine(t, pos)

	err := eng.SyncToAxes(12.5, -3.25)
	require.NoError(t, err)

	res := qu.GetCommandResult(driver.Command{Kind: driver.CmdReadPosition, Axis: axis.Primary}).Wait()
	require.True(t, res.OK)
	assert.InDelta(t, 12.5, res.Value.Float64, 1e-9)
}

func TestEngineAbortSlewReturnsToNone(t *testing.T) {
	t.Parallel()

	pos := &fakePositionReader{fullStop: true}
	eng, _, _ := newTestEngine(t, pos)

	err := eng.AbortSlew(context.Background())
	assert.NoError(t, err)
}
