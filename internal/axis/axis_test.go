package axis

import (
	"testing"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/coord"
	"github.com/stretchr/testify/assert"
)

func TestStepsDegreesRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		steps      int64
		factorStep float64
	}{
		{"zero", 0, 0.0001},
		{"positive", 123456, 360.0 / 2_000_000},
		{"negative", -98765, 360.0 / 2_000_000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			deg := StepsToDegrees(tt.steps, tt.factorStep)
			got := DegreesToSteps(deg, tt.factorStep)
			assert.Equal(t, tt.steps, got)
		})
	}
}

func TestDegreesToStepsZeroFactor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(0), DegreesToSteps(45, 0))
}

func TestStateUpdateAndSnapshot(t *testing.T) {
	t.Parallel()

	s := New(2_000_000, 2_000_000, 360.0/2_000_000)
	now := time.Now()
	s.Update(1000, now, 12.5)

	snap := s.Snapshot()
	assert.Equal(t, int64(1000), snap.StepCount)
	assert.Equal(t, now, snap.StepTimestamp)
	assert.InDelta(t, 12.5, snap.DegreesApp, 1e-9)
}

func TestStateOffsetsAndConstants(t *testing.T) {
	t.Parallel()

	s := New(1000, 1000, 0.36)
	s.SetOffsets(90, 180)
	assert.InDelta(t, 90.0, s.HomeOffset(), 1e-9)
	assert.InDelta(t, 180.0, s.ParkOffset(), 1e-9)

	s.SetConstants(2000, 2000, 0.18)
	assert.Equal(t, int64(2000), s.StepsPerRev())
	assert.InDelta(t, 0.18, s.FactorStep(), 1e-9)

	s.SetFactorStep(0.09)
	assert.InDelta(t, 0.09, s.FactorStep(), 1e-9)
}

func TestPairGet(t *testing.T) {
	t.Parallel()

	p := NewPair(2_000_000, 2_000_000, 360.0/2_000_000)
	assert.Same(t, p.Primary, p.Get(Primary))
	assert.Same(t, p.Secondary, p.Get(Secondary))
}

func TestPairUpdateFromMount(t *testing.T) {
	t.Parallel()

	p := NewPair(2_000_000, 2_000_000, 360.0/2_000_000)
	ctx := coord.Context{Alignment: coord.GermanPolar, Hemisphere: coord.Northern}

	primarySteps := DegreesToSteps(45, p.Primary.FactorStep())
	secondarySteps := DegreesToSteps(30, p.Secondary.FactorStep())

	now := time.Now()
	p.UpdateFromMount(primarySteps, secondarySteps, now, ctx)

	primarySnap := p.Primary.Snapshot()
	secondarySnap := p.Secondary.Snapshot()
	assert.InDelta(t, 45.0, primarySnap.DegreesApp, 1e-6)
	assert.InDelta(t, 30.0, secondarySnap.DegreesApp, 1e-6)
	assert.Equal(t, primarySteps, primarySnap.StepCount)
	assert.Equal(t, secondarySteps, secondarySnap.StepCount)
}

func TestAxisString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "primary", Primary.String())
	assert.Equal(t, "secondary", Secondary.String())
}
