package gesture

// FilterState is the stability filter: it turns raw per-frame poses into a
// debounced stable pose.
type FilterState struct {
	// Stable is the committed pose.
	Stable Pose
	// Candidate is the raw pose currently building up a run.
	Candidate Pose
	// Count is the length of the Candidate run.
	Count int
}

// Update feeds one raw pose. A non-PINCH pose replaces Stable only after
// confirm consecutive observations; PINCH commits on the first one so drag
// input has no lag.
func (f FilterState) Update(raw Pose, confirm int) FilterState {
	if raw == f.Stable {
		f.Candidate = raw
		f.Count = 0
		return f
	}

	if raw == PosePinch {
		return FilterState{Stable: raw, Candidate: raw}
	}

	if raw == f.Candidate {
		f.Count++
	} else {
		f.Candidate = raw
		f.Count = 1
	}

	if f.Count >= confirm {
		return FilterState{Stable: raw, Candidate: raw}
	}
	return f
}

// Reset returns the filter to its initial state.
func (f FilterState) Reset() FilterState {
	return FilterState{}
}
