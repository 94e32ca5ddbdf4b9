package catalog

// index is the in-memory view of the persisted snapshot: id → record plus the
// snapshot order for stable listing. It is a derived structure owned
// exclusively by Store and only ever touched under the store's lock; the
// snapshot file stays the source of truth.
type index struct {
	byID  map[string]Track
	order []string
}

// newIndex builds an index from a snapshot, cloning every record so the cache
// never shares memory with callers.
func newIndex(tracks []Track) *index {
	idx := &index{
		byID:  make(map[string]Track, len(tracks)),
		order: make([]string, 0, len(tracks)),
	}
	for _, t := range tracks {
		idx.byID[t.ID] = t.clone()
		idx.order = append(idx.order, t.ID)
	}
	return idx
}

// get returns a copy of the record for id.
func (x *index) get(id string) (Track, bool) {
	t, ok := x.byID[id]
	if !ok {
		return Track{}, false
	}
	return t.clone(), true
}

// list returns copies of all records in snapshot order.
func (x *index) list() []Track {
	out := make([]Track, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.byID[id].clone())
	}
	return out
}

// snapshot returns cloned records in snapshot order, giving mutations a
// working copy that cannot touch cached state before the write commits.
func (x *index) snapshot() []Track {
	return x.list()
}
