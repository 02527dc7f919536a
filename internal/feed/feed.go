// Package feed keeps the bounded live view of other participants' activity
// for the current round.
package feed

// CashoutType records how a feed entry was settled.
type CashoutType string

const (
	CashoutNone   CashoutType = "none"
	CashoutManual CashoutType = "manual"
	CashoutAuto   CashoutType = "auto"
)

// DefaultCapacity is the default number of entries kept.
const DefaultCapacity = 50

// Entry is one participant's bet as shown in the feed.
type Entry struct {
	BetID       string      `json:"bet_id"`
	PlayerLabel string      `json:"player_label"`
	Amount      float64     `json:"amount"`
	Multiplier  *float64    `json:"multiplier,omitempty"`
	Payout      *float64    `json:"payout,omitempty"`
	CashoutType CashoutType `json:"cashout_type"`
}

// Result of an Upsert.
type Result int

const (
	Dropped Result = iota
	Inserted
	Patched
)

// Store holds at most capacity entries, newest first, with no duplicate bet
// ids. Not safe for concurrent use.
type Store struct {
	capacity int
	entries  []Entry
	index    map[string]struct{}
	evicted  map[string]struct{}
}

// NewStore creates a Store.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
		index:    make(map[string]struct{}, capacity),
		evicted:  make(map[string]struct{}),
	}
}

// Upsert inserts an unseen bet at the head or patches an existing one in
// place. Patches only touch multiplier, payout and cashout type. Entries for
// bets already evicted this round are dropped.
func (s *Store) Upsert(e Entry) Result {
	if e.BetID == "" {
		return Dropped
	}
	if _, gone := s.evicted[e.BetID]; gone {
		return Dropped
	}

	if _, ok := s.index[e.BetID]; ok {
		for i := range s.entries {
			if s.entries[i].BetID != e.BetID {
				continue
			}
			cur := &s.entries[i]
			if e.Multiplier != nil {
				cur.Multiplier = e.Multiplier
			}
			if e.Payout != nil {
				cur.Payout = e.Payout
			}
			if e.CashoutType != "" && e.CashoutType != CashoutNone {
				cur.CashoutType = e.CashoutType
			}
			return Patched
		}
	}

	if e.CashoutType == "" {
		e.CashoutType = CashoutNone
	}

	if len(s.entries) == s.capacity {
		last := s.entries[len(s.entries)-1]
		delete(s.index, last.BetID)
		s.evicted[last.BetID] = struct{}{}
		s.entries = s.entries[:len(s.entries)-1]
	}

	s.entries = append(s.entries, Entry{})
	copy(s.entries[1:], s.entries[:len(s.entries)-1])
	s.entries[0] = e
	s.index[e.BetID] = struct{}{}
	return Inserted
}

// Clear empties the store for a new round.
func (s *Store) Clear() {
	s.entries = s.entries[:0]
	clear(s.index)
	clear(s.evicted)
}

// Entries returns a copy of the feed, newest first.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}
