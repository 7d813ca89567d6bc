package core

// pickLatest compares the latest Mutate* and Delete* events for the same
// data id and returns whichever is newer; when both carry the same
// created_at the delete wins. NotFound from both sides propagates as
// NotFound; NotFound from only one side is not an error.
func pickLatest(mutated *Event, mErr error, deleted *Event, dErr error) (*Event, error) {
	mOK := mErr == nil
	dOK := dErr == nil
	if !mOK && !dOK {
		if IsKind(mErr, ErrNotFound) {
			return nil, mErr
		}
		return nil, mErr
	}
	if mOK && !dOK {
		return mutated, nil
	}
	if !mOK && dOK {
		return deleted, nil
	}
	if deleted.CreatedAt >= mutated.CreatedAt {
		return deleted, nil
	}
	return mutated, nil
}

func greaterID(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
