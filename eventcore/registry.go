package eventcore

import (
	"reflect"
	"sort"
)

// registry holds the global list of subscriptions and the declared-type
// index (by_event_type in spec.md §3), keyed by each subscription's own
// parameter type — not yet flattened against any type hierarchy. Bus
// flattens a posted event's concrete type against this index lazily at
// dispatch time (see Bus.buildForConcreteType). Every mutation is
// expected to happen while the owning Bus holds its structural mutex;
// registry itself does no locking so that Bus can batch several index
// mutations under one rebuild.
type registry struct {
	subscriptions []*Subscription
	byEventType   map[reflect.Type][]*Subscription
}

func newRegistry() *registry {
	return &registry{
		byEventType: make(map[reflect.Type][]*Subscription),
	}
}

// insert appends desc to subscriptions and to every by_event_type bucket it
// matches, keeping each bucket sorted. Returns the set of affected event
// types so the caller can rebuild only those dispatchers.
func (r *registry) insert(desc *Subscription) map[reflect.Type]struct{} {
	r.subscriptions = append(r.subscriptions, desc)

	affected := make(map[reflect.Type]struct{}, len(desc.events))
	for t := range desc.events {
		bucket := append(r.byEventType[t], desc)
		sortSubscriptions(bucket)
		r.byEventType[t] = bucket
		affected[t] = struct{}{}
	}
	return affected
}

// remove deletes desc from subscriptions and from every by_event_type
// bucket it matched, deleting empty buckets. Returns the affected types.
func (r *registry) remove(desc *Subscription) map[reflect.Type]struct{} {
	return r.removeIf(func(s *Subscription) bool { return s == desc })
}

// removeIf removes every subscription matching pred, returning the union
// of affected event types.
func (r *registry) removeIf(pred func(*Subscription) bool) map[reflect.Type]struct{} {
	affected := make(map[reflect.Type]struct{})

	kept := r.subscriptions[:0:0]
	for _, s := range r.subscriptions {
		if pred(s) {
			for t := range s.events {
				affected[t] = struct{}{}
			}
			continue
		}
		kept = append(kept, s)
	}
	r.subscriptions = kept

	for t := range affected {
		bucket := r.byEventType[t][:0:0]
		for _, s := range r.byEventType[t] {
			if !pred(s) {
				bucket = append(bucket, s)
			}
		}
		if len(bucket) == 0 {
			delete(r.byEventType, t)
		} else {
			r.byEventType[t] = bucket
		}
	}
	return affected
}

// sorted returns the current sorted bucket for t (or nil if empty).
func (r *registry) sorted(t reflect.Type) []*Subscription {
	return r.byEventType[t]
}

func sortSubscriptions(subs []*Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		return less(subs[i], subs[j])
	})
}
