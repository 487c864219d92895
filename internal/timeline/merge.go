// Package timeline folds extracted events into the canonical, deduplicated
// case timeline.
package timeline

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/Lllllllleong/casebinder/internal/models"
)

// DefaultPrefixLen is the number of case-folded description runes that take
// part in the merge signature.
const DefaultPrefixLen = 20

// Options tunes the merge signature.
type Options struct {
	// PrefixLen is the description prefix length in runes. Zero means DefaultPrefixLen.
	PrefixLen int
	// CaseSensitive disables case folding of the description.
	CaseSensitive bool
}

func (o Options) prefixLen() int {
	if o.PrefixLen <= 0 {
		return DefaultPrefixLen
	}
	return o.PrefixLen
}

// Signature returns the identity used to decide that two events describe the
// same real-world occurrence.
func (o Options) Signature(e models.TimelineEvent) string {
	return dateKey(e.Date) + "|" + o.foldDescription(e.Description)
}

func (o Options) foldDescription(desc string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if !o.CaseSensitive {
		desc = strings.ToLower(desc)
	}
	runes := []rune(desc)
	if n := o.prefixLen(); len(runes) > n {
		runes = runes[:n]
	}
	return strings.TrimSpace(string(runes))
}

func dateKey(date string) string {
	if t, ok := ParseDate(date); ok {
		return t.Format(time.DateOnly)
	}
	return "?" + strings.ToLower(strings.TrimSpace(date))
}

type keyed struct {
	event  models.TimelineEvent
	date   time.Time
	dated  bool
	sig    string
	norm   string
	srcKey string
}

// Merge folds incoming into existing and returns the canonical timeline.
// Events sharing a signature collapse into the first one in date order; the
// others only contribute their sources. Neither input is modified.
func Merge(existing, incoming []models.TimelineEvent, opts Options) []models.TimelineEvent {
	all := make([]keyed, 0, len(existing)+len(incoming))
	for _, src := range [][]models.TimelineEvent{existing, incoming} {
		for _, e := range src {
			k := keyed{event: e, sig: opts.Signature(e)}
			k.date, k.dated = ParseDate(e.Date)
			k.norm = e.Date
			if k.dated {
				k.norm = k.date.Format(time.DateOnly)
			}
			k.srcKey = strings.Join(normalizeSources(e.Sources), "\x00")
			all = append(all, k)
		}
	}

	slices.SortStableFunc(all, compareKeyed)

	out := make([]models.TimelineEvent, 0, len(all))
	index := make(map[string]int, len(all))
	for _, k := range all {
		if i, ok := index[k.sig]; ok {
			out[i].Sources = unionSources(out[i].Sources, k.event.Sources)
			continue
		}
		canonical := k.event
		canonical.Date = k.norm
		canonical.Sources = normalizeSources(k.event.Sources)
		index[k.sig] = len(out)
		out = append(out, canonical)
	}
	return out
}

// compareKeyed orders events by date, undated last, then by content so that
// the canonical record does not depend on arrival order.
func compareKeyed(a, b keyed) int {
	if a.dated != b.dated {
		if a.dated {
			return -1
		}
		return 1
	}
	if c := a.date.Compare(b.date); c != 0 {
		return c
	}
	return cmp.Or(
		strings.Compare(a.sig, b.sig),
		strings.Compare(a.event.Description, b.event.Description),
		strings.Compare(a.norm, b.norm),
		strings.Compare(string(a.event.Severity), string(b.event.Severity)),
		strings.Compare(a.event.Category, b.event.Category),
		strings.Compare(a.event.Quote, b.event.Quote),
		strings.Compare(string(a.event.Relevance), string(b.event.Relevance)),
		strings.Compare(a.srcKey, b.srcKey),
	)
}

func normalizeSources(sources []string) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func unionSources(a, b []string) []string {
	merged := append(slices.Clone(a), b...)
	return normalizeSources(merged)
}
