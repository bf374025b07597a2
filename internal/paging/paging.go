// Package paging emulates OFFSET for stores whose query language only
// supports LIMIT.
//
// The native query fetches limit+offset rows and the first offset rows are
// dropped in memory. A safety ceiling (Max) bounds every fetch; when it
// truncates a result, Meta tells the caller the true count and the next
// offset.
package paging

import (
	"strconv"
	"strings"
)

// Rewrite removes any OFFSET n pair from query and sets the argument of an
// existing LIMIT n pair to limit+offset. The returned int is the effective
// limit. Tokens are split on whitespace and rejoined with single spaces.
func Rewrite(query string, limit, offset int) (string, int) {
	effective := limit + offset
	toks := strings.Fields(query)

	out := make([]string, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		hasArg := i+1 < len(toks) && isInt(toks[i+1])
		switch {
		case strings.EqualFold(t, "LIMIT") && hasArg:
			out = append(out, t, strconv.Itoa(effective))
			i++
		case strings.EqualFold(t, "OFFSET") && hasArg:
			i++
		default:
			out = append(out, t)
		}
	}
	return strings.Join(out, " "), effective
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// Window is the page a request reads.
type Window struct {
	// Limit is the number of rows returned to the caller. Zero means all.
	Limit int

	// Offset is the number of leading rows skipped in memory.
	Offset int

	// NativeLimit is the LIMIT sent to the store (Limit+Offset). Zero means
	// no LIMIT clause.
	NativeLimit int

	// Max is the safety ceiling on rows fetched. Zero disables it.
	Max int

	// Imposed is set when the ceiling replaced or reduced the requested limit.
	Imposed bool

	// Exhausted is set when the offset reaches the ceiling. Nothing may be
	// fetched: Limit and NativeLimit are zero and Offset is kept as requested.
	Exhausted bool
}

// NewWindow derives a Window from the requested limit and offset.
//
// A limit below 1 or above max becomes max. Limit+Offset never exceeds max:
// the limit takes what remains after the offset. An offset at or past max
// yields an Exhausted window.
func NewWindow(limit, offset, max int) Window {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	w := Window{Limit: limit, Offset: offset, Max: max}

	if max <= 0 {
		if w.Limit > 0 {
			w.NativeLimit = w.Limit + w.Offset
		}
		return w
	}

	if w.Limit < 1 || w.Limit > max {
		w.Limit = max
		w.Imposed = true
	}
	if w.Offset >= max {
		w.Limit = 0
		w.Imposed = true
		w.Exhausted = true
		return w
	}
	if w.Limit+w.Offset > max {
		w.Limit = max - w.Offset
		w.Imposed = true
	}
	w.NativeLimit = w.Limit + w.Offset
	return w
}

// Slice returns at most limit rows of rows after skipping offset. A limit
// of zero returns every remaining row.
func Slice[T any](rows []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return rows[:0:0]
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// Meta is response metadata describing the page.
type Meta struct {
	// Count is the total number of matching rows.
	Count *int `json:"count,omitempty" yaml:"count,omitempty"`

	// Next is the offset of the following page.
	Next *int `json:"next,omitempty" yaml:"next,omitempty"`

	// Schema describes the table when requested.
	Schema map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// NewMeta reports count when includeCount is set or the ceiling truncated
// the result, and next whenever rows remain past the window.
func NewMeta(count int, w Window, includeCount bool) Meta {
	var m Meta
	truncated := w.Max > 0 && count > w.Max
	if !includeCount && !truncated {
		return m
	}
	m.Count = &count
	if w.Limit > 0 && count-w.Offset > w.Limit {
		next := w.Offset + w.Limit
		m.Next = &next
	}
	return m
}

// Empty reports whether m carries nothing.
func (m Meta) Empty() bool {
	return m.Count == nil && m.Next == nil && m.Schema == nil
}
