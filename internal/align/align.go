// Package align defines the pluggable alignment (pointing model) adapter. The
// core calls MapToSynced before issuing a slew and MapToUnsynced when reporting
// current position (spec §4.5, §9). No concrete pointing model is specified;
// Identity is the only implementation shipped here.
package align

// Axes is a primary/secondary axis-degree pair.
type Axes struct {
	Primary   float64
	Secondary float64
}

// Adapter maps between the axes the driver reports ("unsynced") and the axes
// the rest of the core reasons about ("synced"), after a Sync operation has
// recorded an offset between where the mount thinks it is pointed and where it
// is actually pointed.
type Adapter interface {
	// MapToSynced converts raw/unsynced axes into the synced frame the Slew
	// Engine targets.
	MapToSynced(unsynced Axes) Axes
	// MapToUnsynced converts synced axes back into the raw frame the driver
	// understands, for reporting current position.
	MapToUnsynced(synced Axes) Axes
	// Sync records that the mount is actually pointed at `synced` while the
	// driver reports `unsynced`, updating whatever offset the adapter keeps.
	Sync(unsynced, synced Axes)
}

// Identity is the default Adapter: no pointing-model correction at all.
type Identity struct{}

func (Identity) MapToSynced(unsynced Axes) Axes { return unsynced }
func (Identity) MapToUnsynced(synced Axes) Axes { return synced }
func (Identity) Sync(unsynced, synced Axes)     {}

var _ Adapter = Identity{}
