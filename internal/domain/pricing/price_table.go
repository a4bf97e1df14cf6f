package pricing

import (
	"sort"
	"time"
)

// Resolution is the outcome of looking up a price for a day
type Resolution struct {
	Price *UsagePrice
	// Candidates is the number of entries covering the day. More than one
	// means the price list has overlapping ranges.
	Candidates int
}

// Found reports whether a price covers the day
func (r Resolution) Found() bool {
	return r.Price != nil
}

// Ambiguous reports whether more than one entry covered the day
func (r Resolution) Ambiguous() bool {
	return r.Candidates > 1
}

// PriceTable is the dated price list of a single usage type
type PriceTable struct {
	entries []*UsagePrice
}

// NewPriceTable wraps the entries of one usage type
func NewPriceTable(entries []*UsagePrice) *PriceTable {
	return &PriceTable{entries: entries}
}

// Resolve picks the price in effect on day. Among the entries covering the
// day the latest start wins, then the earliest end, then the lowest ID.
func (t *PriceTable) Resolve(day time.Time) Resolution {
	var covering []*UsagePrice
	for _, e := range t.entries {
		if e.Covers(day) {
			covering = append(covering, e)
		}
	}
	if len(covering) == 0 {
		return Resolution{}
	}
	sort.Slice(covering, func(i, j int) bool {
		a, b := covering[i], covering[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.After(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID.String() < b.ID.String()
	})
	return Resolution{Price: covering[0], Candidates: len(covering)}
}

// PriceOn returns the price in effect on day
func (t *PriceTable) PriceOn(day time.Time) (*UsagePrice, bool) {
	res := t.Resolve(day)
	return res.Price, res.Found()
}
