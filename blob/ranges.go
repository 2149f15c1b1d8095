package blob

import "sort"

// coverage tracks disjoint [start, end) byte ranges stored so far, merging
// overlapping or adjacent ranges as they arrive, so a target can tell when
// the whole [0, total) span of a blob has been covered without keeping a
// full bitmap.
type coverage struct {
	spans []span
}

type span struct {
	start, end int64
}

// add merges in [start, end) and reports whether the union now covers
// [0, total).
func (c *coverage) add(start, end, total int64) bool {
	if total <= 0 {
		return true
	}
	if end <= start {
		return c.isComplete(total)
	}

	spans := append(c.spans, span{start, end})
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := spans[:0]
	for _, sp := range spans {
		if len(merged) > 0 && sp.start <= merged[len(merged)-1].end {
			if sp.end > merged[len(merged)-1].end {
				merged[len(merged)-1].end = sp.end
			}
		} else {
			merged = append(merged, sp)
		}
	}
	c.spans = merged

	return c.isComplete(total)
}

func (c *coverage) isComplete(total int64) bool {
	return len(c.spans) == 1 && c.spans[0].start <= 0 && c.spans[0].end >= total
}

// missingRanges returns every gap in [0, total) that no stored range covers
// yet, in ascending order; Manipulator.Update requests a resend for each.
func (c *coverage) missingRanges(total int64) []span {
	var gaps []span
	cursor := int64(0)
	for _, sp := range c.spans {
		if sp.start > cursor {
			gaps = append(gaps, span{cursor, sp.start})
		}
		if sp.end > cursor {
			cursor = sp.end
		}
	}
	if cursor < total {
		gaps = append(gaps, span{cursor, total})
	}
	return gaps
}
