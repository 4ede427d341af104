package pipeline

import (
	"sort"
	"time"

	"github.com/diwise/integration-nodos/domain"
)

// GroupedSeries maps a logical type code to its readings in source order.
type GroupedSeries map[int][]domain.Reading

// GroupByType partitions readings by the group key the catalog resolves for each
// reading. Readings of unknown types are kept under their raw type id.
func GroupByType(readings []domain.Reading, catalog *Catalog) GroupedSeries {
	groups := GroupedSeries{}

	for _, r := range readings {
		key := catalog.KeyFor(r.TypeID)
		groups[key] = append(groups[key], r)
	}

	return groups
}

func (g GroupedSeries) Keys() []int {
	keys := make([]int, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Len is the number of readings across all groups.
func (g GroupedSeries) Len() int {
	n := 0
	for _, rs := range g {
		n += len(rs)
	}
	return n
}

// Latest returns the last reading of the group under key. Groups must be in
// chronologically ascending order for this to be the most recent one.
func (g GroupedSeries) Latest(key int) (domain.Reading, bool) {
	rs := g[key]
	if len(rs) == 0 {
		return domain.Reading{}, false
	}
	return rs[len(rs)-1], true
}

// Flatten returns every reading, groups in ascending key order.
func Flatten(g GroupedSeries) []domain.Reading {
	all := make([]domain.Reading, 0, g.Len())
	for _, k := range g.Keys() {
		all = append(all, g[k]...)
	}
	return all
}

// MergeNewestFirst flattens the groups and orders them by timestamp, newest
// first. Readings without a usable timestamp go last.
func MergeNewestFirst(g GroupedSeries, loc *time.Location) []domain.Reading {
	all := Flatten(g)

	sort.SliceStable(all, func(i, j int) bool {
		a := ToEpochMillis(all[i].Timestamp, loc)
		b := ToEpochMillis(all[j].Timestamp, loc)
		return a > b
	})

	return all
}
