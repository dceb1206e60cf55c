package eventcore

import (
	"github.com/robfig/cron/v3"
)

// Baker wraps a cron schedule that periodically calls Bus.Bake() as a
// defensive full-rebuild sweep, independent of the incremental rebuild
// that already happens on every Register/Unregister. Bake is idempotent
// (spec.md §8 invariant 4), so a sweep that finds nothing to do is a no-op
// beyond republishing an identical dispatcher snapshot.
//
// Grounded in the teacher's modules/scheduler use of robfig/cron for
// periodic application jobs, repurposed here to serve the bus's own
// bake() operation instead of application-level scheduled work.
type Baker struct {
	bus    *Bus
	cron   *cron.Cron
	entry  cron.EntryID
	onErr  func(error)
	active bool
}

// NewBaker constructs a Baker for bus using the given cron spec (standard
// 5-field crontab syntax, e.g. "@every 1m"). onErr, if non-nil, is called
// with any error Bake() returns; a nil onErr logs through bus's Logger.
func NewBaker(bus *Bus, spec string, onErr func(error)) (*Baker, error) {
	c := cron.New()
	b := &Baker{bus: bus, cron: c, onErr: onErr}
	id, err := c.AddFunc(spec, b.tick)
	if err != nil {
		return nil, err
	}
	b.entry = id
	return b, nil
}

func (b *Baker) tick() {
	if err := b.bus.Bake(); err != nil {
		if b.onErr != nil {
			b.onErr(err)
			return
		}
		b.bus.logger.Error("periodic bake failed", "error", err)
	}
}

// Start begins the cron schedule. Safe to call once; subsequent calls are
// no-ops.
func (b *Baker) Start() {
	if b.active {
		return
	}
	b.active = true
	b.cron.Start()
}

// Stop halts the cron schedule and waits for any in-flight tick to finish.
func (b *Baker) Stop() {
	if !b.active {
		return
	}
	b.active = false
	<-b.cron.Stop().Done()
}
