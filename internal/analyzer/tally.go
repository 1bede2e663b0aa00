package analyzer

// Tally counts occurrences per key. Counts only ever increase.
type Tally struct {
	counts map[string]int
}

// NewTally creates an empty tally
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int, 64)}
}

// Increment adds one to the count for key, creating it at 1 if absent
func (t *Tally) Increment(key string) {
	t.counts[key]++
}

// Count returns the count for key, or zero if it was never seen
func (t *Tally) Count(key string) int {
	return t.counts[key]
}

// Len returns the number of distinct keys
func (t *Tally) Len() int {
	return len(t.counts)
}

// AddressSet tracks distinct client addresses
type AddressSet struct {
	members map[string]struct{}
}

// NewAddressSet creates an empty set
func NewAddressSet() *AddressSet {
	return &AddressSet{members: make(map[string]struct{}, 64)}
}

// Add inserts addr; adding a present address has no effect
func (s *AddressSet) Add(addr string) {
	s.members[addr] = struct{}{}
}

// Contains reports whether addr has been added
func (s *AddressSet) Contains(addr string) bool {
	_, ok := s.members[addr]
	return ok
}

// Len returns the number of distinct addresses
func (s *AddressSet) Len() int {
	return len(s.members)
}
