package aggregator

import (
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/codec"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/connection"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/events"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// MaxCadenceRpm bounds derived crank cadence. Larger values come from
// glitched samples and are dropped.
const MaxCadenceRpm = 300.0

// Snapshot is the latest known value of each metric across all roles.
// Metrics are zero until first observed.
type Snapshot struct {
	PowerWatts      int16
	CadenceRpm      float64
	SpeedKmh        float64
	HeartRateBpm    uint16
	ResistanceLevel int16
	// UpdatedAt is when the last applied record was received.
	UpdatedAt time.Time
}

// RecordSource is what the aggregator listens to. *connection.Manager
// satisfies it.
type RecordSource interface {
	ListenRecords(fn func(connection.RoleRecord)) func()
	ListenStates(fn func(connection.StateChange)) func()
}

type crankSample struct {
	revolutions uint16
	eventTime   uint16
}

type Aggregator struct {
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	snapshot Snapshot
	crank    map[sensor.Role]crankSample

	snapshotEvent *events.ChannelEvent[Snapshot]
	recordsEvent  *events.CallbackEvent[connection.RoleRecord]
}

func NewAggregator(logger *log.Logger) *Aggregator {
	if logger == nil {
		panic("Aggregator: logger cannot be nil")
	}
	return &Aggregator{
		logger:        logger,
		now:           time.Now,
		crank:         make(map[sensor.Role]crankSample),
		snapshotEvent: events.NewChannelEvent[Snapshot](true),
		recordsEvent:  events.NewCallbackEvent[connection.RoleRecord](false),
	}
}

// Attach subscribes the aggregator to source and returns a function that
// detaches it.
func (a *Aggregator) Attach(source RecordSource) func() {
	removeRecords := source.ListenRecords(a.Apply)
	removeStates := source.ListenStates(a.HandleState)
	return func() {
		removeRecords()
		removeStates()
	}
}

// Apply merges one record into the snapshot. Only metrics present in the
// record are overwritten.
func (a *Aggregator) Apply(rr connection.RoleRecord) {
	at := rr.ReceivedAt
	if at.IsZero() {
		at = a.now()
	}

	out := rr
	a.mu.Lock()
	switch rec := rr.Record.(type) {
	case *codec.IndoorBikeRecord:
		a.applyIndoorBike(rec)
	case *codec.PowerRecord:
		a.snapshot.PowerWatts = rec.PowerWatts
		if cadence, ok := a.crankCadence(rr.Role, rec); ok {
			a.snapshot.CadenceRpm = cadence
			enriched := *rec
			enriched.EstimatedCadenceRpm = &cadence
			out.Record = &enriched
		}
	case *codec.HeartRateRecord:
		a.snapshot.HeartRateBpm = rec.HeartRateBpm
	default:
		a.mu.Unlock()
		a.logger.Printf("Aggregator: ignoring %T from %s", rr.Record, rr.Role)
		return
	}
	a.snapshot.UpdatedAt = at
	snapshot := a.snapshot
	// published under the lock so listeners see snapshots in apply order
	a.snapshotEvent.Notify(snapshot)
	a.mu.Unlock()

	a.recordsEvent.Notify(out)
}

func (a *Aggregator) applyIndoorBike(rec *codec.IndoorBikeRecord) {
	if rec.PowerWatts != nil {
		a.snapshot.PowerWatts = *rec.PowerWatts
	}
	if rec.CadenceRpm != nil {
		a.snapshot.CadenceRpm = *rec.CadenceRpm
	}
	if rec.SpeedKmh != nil {
		a.snapshot.SpeedKmh = *rec.SpeedKmh
	}
	if rec.ResistanceLevel != nil {
		a.snapshot.ResistanceLevel = *rec.ResistanceLevel
	}
}

// crankCadence derives cadence from the crank pair in rec and the role's
// previous pair. Both counters wrap at 65536; event time is in 1/1024 s.
// Caller holds mu.
func (a *Aggregator) crankCadence(role sensor.Role, rec *codec.PowerRecord) (float64, bool) {
	if rec.CumulativeCrankRevolutions == nil || rec.LastCrankEventTime == nil {
		return 0, false
	}
	current := crankSample{
		revolutions: *rec.CumulativeCrankRevolutions,
		eventTime:   *rec.LastCrankEventTime,
	}
	previous, ok := a.crank[role]
	a.crank[role] = current
	if !ok {
		return 0, false
	}

	revDiff := current.revolutions - previous.revolutions
	timeDiff := current.eventTime - previous.eventTime
	if revDiff == 0 || timeDiff == 0 {
		return 0, false
	}

	cadence := float64(revDiff) * 60.0 * 1024.0 / float64(timeDiff)
	if cadence > MaxCadenceRpm {
		a.logger.Printf("Aggregator: %s discarding cadence %.1f rpm (revs +%d in %d ticks)", role, cadence, revDiff, timeDiff)
		return 0, false
	}
	return cadence, true
}

// HandleState forgets a role's crank history once it leaves Connected, so
// a reconnect does not compute cadence across the gap.
func (a *Aggregator) HandleState(sc connection.StateChange) {
	if sc.State == sensor.Connected {
		return
	}
	a.mu.Lock()
	delete(a.crank, sc.Role)
	a.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// ListenSnapshots registers a channel to receive every updated snapshot.
// A new listener is sent the current one if any record has been applied.
// Returns a deregistration function.
func (a *Aggregator) ListenSnapshots(ch chan<- Snapshot) func() {
	return a.snapshotEvent.Listen(ch)
}

// ListenRecords registers a callback for applied records. Power records
// carry EstimatedCadenceRpm when cadence could be derived.
func (a *Aggregator) ListenRecords(fn func(connection.RoleRecord)) func() {
	return a.recordsEvent.Listen(fn)
}
