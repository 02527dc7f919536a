package game

import (
	"time"

	"github.com/rickgao/crashline/internal/bet"
	"github.com/rickgao/crashline/internal/connection"
	"github.com/rickgao/crashline/internal/feed"
	"github.com/rickgao/crashline/internal/round"
)

// View is a read-only snapshot of the client. Slices and pointers are never
// shared with live state.
type View struct {
	Mode        string            `json:"mode,omitempty"`
	Connection  connection.Status `json:"connection"`
	Round       *round.Round      `json:"round,omitempty"`
	Countdown   int               `json:"countdown,omitempty"`
	History     []float64         `json:"history"`
	Bet         bet.Bet           `json:"bet"`
	AutoCooling bool              `json:"auto_cashout_cooling,omitempty"`
	Feed        []feed.Entry      `json:"feed"`
	Balance     *float64          `json:"balance,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
	Seq         uint64            `json:"seq"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// subscribers fans views out to readers. Each channel holds only the latest
// view; a slow reader skips intermediate ones.
type subscribers struct {
	next   int
	chans  map[int]chan View
	closed bool
}

func (s *subscribers) add(initial View) (int, chan View) {
	ch := make(chan View, 1)
	if s.closed {
		close(ch)
		return -1, ch
	}
	if s.chans == nil {
		s.chans = make(map[int]chan View)
	}
	s.next++
	s.chans[s.next] = ch
	ch <- initial
	return s.next, ch
}

func (s *subscribers) remove(id int) {
	if ch, ok := s.chans[id]; ok {
		delete(s.chans, id)
		close(ch)
	}
}

func (s *subscribers) broadcast(v View) {
	for _, ch := range s.chans {
		select {
		case ch <- v:
			continue
		default:
		}
		// Replace the stale view.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

func (s *subscribers) closeAll() {
	for id := range s.chans {
		s.remove(id)
	}
	s.closed = true
}
