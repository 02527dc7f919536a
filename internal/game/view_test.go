package game

import (
	"testing"

	"github.com/rickgao/crashline/internal/protocol"
)

func TestSubscribers_LatestWins(t *testing.T) {
	var s subscribers
	_, ch := s.add(View{Seq: 1})

	s.broadcast(View{Seq: 2})
	s.broadcast(View{Seq: 3})

	if v := <-ch; v.Seq != 3 {
		t.Errorf("got seq %d, want 3", v.Seq)
	}
	select {
	case v := <-ch:
		t.Errorf("unexpected extra view %d", v.Seq)
	default:
	}
}

func TestSubscribers_CloseAll(t *testing.T) {
	var s subscribers
	_, a := s.add(View{})
	id, b := s.add(View{})
	s.remove(id)

	s.closeAll()
	<-a
	if _, ok := <-a; ok {
		t.Error("channel a still open")
	}
	if _, ok := <-b; ok {
		t.Error("channel b still open")
	}

	_, late := s.add(View{})
	if _, ok := <-late; ok {
		t.Error("subscription after close should be closed")
	}
}

type fakeSender struct {
	open bool
	sent [][]byte
}

func (f *fakeSender) Send(data []byte) bool {
	if !f.open {
		return false
	}
	f.sent = append(f.sent, data)
	return true
}

func TestDispatcher(t *testing.T) {
	out := &fakeSender{}
	d := &dispatcher{out: out, logger: discardLogger()}

	if d.Dispatch(protocol.CancelAutoCashout{BetID: "b1"}) {
		t.Error("dispatch succeeded on a closed socket")
	}

	out.open = true
	if !d.Dispatch(protocol.CancelAutoCashout{BetID: "b1"}) {
		t.Fatal("dispatch failed on an open socket")
	}
	want := `{"type":"cancel_auto_cashout","data":{"bet_id":"b1"}}`
	if got := string(out.sent[0]); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
}
