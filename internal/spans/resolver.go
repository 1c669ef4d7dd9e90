package spans

// Resolution is the outcome of reconciling the marker set after an edit:
// the surviving markers in buffer order with dense part indices, plus the
// markers dropped because their range collided with an earlier one.
type Resolution struct {
	// Order lists surviving markers in buffer order.
	Order []Marker

	// Index maps each surviving marker to its dense part index.
	Index map[MarkerID]int

	// Dropped lists markers removed during resolution.
	Dropped []MarkerID
}

// Resolve rebuilds the ordered part mapping from the live marker set.
// When two markers span identical ranges the first-created survives and
// later ones are destroyed silently; this is idempotent truncation, not
// an error.
func (ix *Index) Resolve() Resolution {
	live := ix.Live()

	res := Resolution{
		Index: make(map[MarkerID]int, len(live)),
	}

	type rangeKey struct{ start, end int }
	seen := make(map[rangeKey]MarkerID, len(live))

	for _, m := range live {
		key := rangeKey{m.Start, m.End}
		if _, dup := seen[key]; dup {
			res.Dropped = append(res.Dropped, m.ID)
			continue
		}
		seen[key] = m.ID
		res.Index[m.ID] = len(res.Order)
		res.Order = append(res.Order, m)
	}

	for _, id := range res.Dropped {
		ix.Remove(id)
	}

	return res
}
