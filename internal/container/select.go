package container

// Outranks reports whether a should be preferred over b when both declare the
// same identity.
//
// A container whose metadata could not be read never outranks a readable one,
// since its identity is only derived from its file name. Otherwise a
// container with an explicit revision outranks one without; between two
// revisions the higher wins; between two without, the more recently modified
// location wins.
func Outranks(a, b *Container) bool {
	if brokenA, brokenB := a.err != nil, b.err != nil; brokenA != brokenB {
		return brokenB
	}

	ra, okA := a.Revision()
	rb, okB := b.Revision()

	switch {
	case okA && !okB:
		return true
	case !okA && okB:
		return false
	case okA && okB:
		return ra > rb
	default:
		return a.modTime.Compare(b.modTime) > 0
	}
}

// Selection is the result of version selection over a candidate list.
type Selection struct {
	// Winners holds one container per identity, in order of the identity's
	// first appearance among the candidates.
	Winners []*Container

	// Superseded holds every candidate that lost to a winner.
	Superseded []*Container
}

// Select picks exactly one winner per identity. Equal-ranked candidates keep
// the earliest discovered.
func Select(candidates []*Container) Selection {
	best := make(map[string]int, len(candidates))
	var sel Selection

	winners := make([]*Container, 0, len(candidates))
	for _, c := range candidates {
		idx, seen := best[c.identity]
		if !seen {
			best[c.identity] = len(winners)
			winners = append(winners, c)
			continue
		}
		if Outranks(c, winners[idx]) {
			sel.Superseded = append(sel.Superseded, winners[idx])
			winners[idx] = c
		} else {
			sel.Superseded = append(sel.Superseded, c)
		}
	}

	sel.Winners = winners
	return sel
}
