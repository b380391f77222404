package store

// Default-alternative bookkeeping is decided by pure functions so the
// rules are testable without a database; postgres.go applies the result
// inside the mutating transaction.

// altState is the minimal sibling view needed for default assignment.
type altState struct {
	ID        string
	IsDefault bool
}

// resolveDefaultOnAdd returns the alternative id that must be default
// after newID joins siblings. wantDefault nil means the caller did not
// specify: the first alternative of a section becomes default, later
// ones do not steal it.
func resolveDefaultOnAdd(siblings []altState, newID string, wantDefault *bool) string {
	if wantDefault != nil && *wantDefault {
		return newID
	}
	for _, sib := range siblings {
		if sib.IsDefault {
			return sib.ID
		}
	}
	// No existing default: either the section was empty, or an earlier
	// state was inconsistent. The new alternative takes it.
	return newID
}

// resolveDefaultOnDelete returns the id to hold default after removedID
// is deleted, and whether any alternatives remain. An empty promoteID
// with remaining=true means the current default survives untouched.
func resolveDefaultOnDelete(siblings []altState, removedID string) (promoteID string, remaining bool) {
	var survivors []altState
	removedWasDefault := false
	for _, sib := range siblings {
		if sib.ID == removedID {
			removedWasDefault = sib.IsDefault
			continue
		}
		survivors = append(survivors, sib)
	}
	if len(survivors) == 0 {
		return "", false
	}
	if !removedWasDefault {
		return "", true
	}
	return survivors[0].ID, true
}
