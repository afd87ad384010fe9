package planner

import (
	"sort"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// poolEntry is one cauldron's live state during a planning run. Level starts
// at the snapshot volume and is lowered by each planned collection.
type poolEntry struct {
	Cauldron cauldron.Cauldron
	Level    float64
	Visits   int
}

// pool is the shared set of cauldrons still needing service. It is mutated
// across successive trip builds by exactly one goroutine; the scheduling loop
// is strictly sequential.
type pool struct {
	entries map[string]*poolEntry
	active  map[string]struct{}
}

func newPool(cauldrons []cauldron.Cauldron) *pool {
	p := &pool{
		entries: make(map[string]*poolEntry, len(cauldrons)),
		active:  make(map[string]struct{}, len(cauldrons)),
	}
	for _, c := range cauldrons {
		p.entries[c.ID] = &poolEntry{Cauldron: c, Level: c.CurrentVolume}
		p.active[c.ID] = struct{}{}
	}
	return p
}

func (p *pool) activeSize() int {
	return len(p.active)
}

// activeEntries returns the still-active entries sorted by cauldron ID for
// deterministic iteration.
func (p *pool) activeEntries() []*poolEntry {
	out := make([]*poolEntry, 0, len(p.active))
	for id := range p.active {
		out = append(out, p.entries[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cauldron.ID < out[j].Cauldron.ID
	})
	return out
}

func (p *pool) activeIDs() []string {
	ids := make([]string, 0, len(p.active))
	for id := range p.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// collect lowers a cauldron's live level and counts the visit.
func (p *pool) collect(id string, volume float64) {
	e, ok := p.entries[id]
	if !ok {
		return
	}
	e.Level -= volume
	if e.Level < 0 {
		e.Level = 0
	}
	e.Visits++
}

// deactivate removes a cauldron from the active set. This is the single,
// auditable "mark serviced / remove" step.
func (p *pool) deactivate(id string) {
	delete(p.active, id)
}
