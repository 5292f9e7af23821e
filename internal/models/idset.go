package models

// IDSet is an insertion-ordered set of ids. It serialises as a plain JSON array,
// which keeps the on-disk shape of the older list-based files.
type IDSet []int64

// Has reports whether id is a member.
func (s IDSet) Has(id int64) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns the set with id appended when it is not already present.
func (s IDSet) Add(id int64) IDSet {
	if s.Has(id) {
		return s
	}
	return append(s.Clone(), id)
}

// Remove returns a new set without id.
func (s IDSet) Remove(id int64) IDSet {
	out := make(IDSet, 0, len(s))
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Toggle removes id if present, otherwise adds it. The second result is true when
// id is a member afterwards.
func (s IDSet) Toggle(id int64) (IDSet, bool) {
	if s.Has(id) {
		return s.Remove(id), false
	}
	return append(s.Clone(), id), true
}

// Clone copies the set. A nil set clones to an empty, non-nil one.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	copy(out, s)
	return out
}
