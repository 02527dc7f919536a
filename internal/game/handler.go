package game

import (
	"errors"

	"github.com/rickgao/crashline/internal/bet"
	"github.com/rickgao/crashline/internal/connection"
	"github.com/rickgao/crashline/internal/feed"
	"github.com/rickgao/crashline/internal/protocol"
)

// HandleMessage decodes one inbound frame and routes it. Runs on the loop.
func (c *Client) HandleMessage(msg connection.TimestampedMessage) {
	ev, err := c.decoder.Decode(msg.Data)
	if err != nil {
		c.protocolError(err)
		return
	}
	c.metrics.EventReceived(ev.EventName())
	c.route(ev)
	c.publish()
}

// HandleStatus records a session status change. Runs on the loop.
func (c *Client) HandleStatus(st connection.Status) {
	if st.Attempt > c.status.Attempt {
		c.metrics.ReconnectScheduled()
	}
	if st.Connected && !c.status.Connected {
		c.lastError = ""
	}
	c.status = st
	c.metrics.SetLiveness(st.Connected, st.EngineAlive)
	c.publish()
}

func (c *Client) route(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.Connected:
		c.mode = ev.Mode
		c.logger.Info("handshake confirmed", "mode", ev.Mode)

	case protocol.RoundStart:
		c.session.MarkEngineAlive()
		c.rounds.Start(ev.RoundID)
		c.feed.Clear()
		c.bets.OnRoundStart(ev.RoundID)
		c.monitor.Reset()
		c.countdown = 0
		c.metrics.SetMultiplier(1)
		c.logger.Info("round started", "round_id", ev.RoundID)

	case protocol.RoundCountdown:
		c.session.MarkEngineAlive()
		c.countdown = ev.Seconds

	case protocol.RoundLockBets:
		c.session.MarkEngineAlive()
		if err := c.rounds.LockBets(); err != nil {
			c.protocolError(err)
			return
		}
		c.countdown = 0

	case protocol.MultiplierUpdate:
		c.session.MarkEngineAlive()
		if err := c.rounds.Update(ev.Multiplier); err != nil {
			c.protocolError(err)
			return
		}
		c.metrics.SetMultiplier(ev.Multiplier)
		if c.monitor.OnMultiplier(ev.Multiplier) {
			c.metrics.AutoCashoutFired()
		}

	case protocol.RoundCrash:
		c.session.MarkEngineAlive()
		if err := c.rounds.Crash(ev.CrashPoint); err != nil {
			c.protocolError(err)
			return
		}
		c.metrics.RoundCrashed(ev.CrashPoint)
		if r, ok := c.rounds.Current(); ok && c.recorder != nil {
			c.recorder.RecordRound(r)
		}
		c.logger.Info("round crashed", "crash_point", ev.CrashPoint)

		// The round ended with our bet still riding. A later bet_crashed
		// for the same bet is then a no-op.
		if c.bets.OnCrashed(protocol.BetCrashed{CrashMultiplier: ev.CrashPoint}) {
			c.settled(nil)
		}

	case protocol.PlayerBet:
		c.feed.Upsert(feed.Entry{
			BetID:       ev.BetID,
			PlayerLabel: ev.User,
			Amount:      ev.Amount,
		})

	case protocol.PlayerCashout:
		multiplier, payout := ev.Multiplier, ev.Payout
		c.feed.Upsert(feed.Entry{
			BetID:       ev.BetID,
			Multiplier:  &multiplier,
			Payout:      &payout,
			CashoutType: cashoutType(ev.CashoutType),
		})

	case protocol.BetAccepted:
		if c.bets.OnAccepted(ev) && ev.Balance != nil && c.balance != nil {
			c.balance.Set(*ev.Balance)
		}

	case protocol.BetFailed:
		c.reject(c.bets.OnFailed(ev))

	case protocol.CashoutSuccess:
		if c.bets.OnSettled(ev.BetID, ev.Multiplier, ev.Payout, false) {
			c.settled(ev.Balance)
			return
		}
		c.applyBalance(ev.Balance)

	case protocol.AutoCashoutTriggered:
		if c.bets.OnSettled(ev.BetID, ev.Multiplier, ev.Payout, true) {
			c.settled(ev.Balance)
			return
		}
		c.applyBalance(ev.Balance)

	case protocol.BetCrashed:
		if c.bets.OnCrashed(ev) {
			c.settled(nil)
		}

	case protocol.AutoCashoutCancelled:
		if c.bets.OnAutoCashoutCancelled() {
			c.monitor.Reset()
		}

	case protocol.CashoutFailed:
		c.reject(c.bets.OnCashoutFailed(ev))

	case protocol.CancelAutoCashoutFailed:
		c.reject(c.bets.OnCancelAutoCashoutFailed(ev))
	}
}

// settled handles a bet reaching a terminal state. A pushed balance is
// applied directly, otherwise the wallet is refreshed out of band.
func (c *Client) settled(balance *float64) {
	c.monitor.Reset()
	if c.recorder != nil {
		c.recorder.RecordBet(c.bets.Bet())
	}
	if c.balance == nil {
		return
	}
	if balance != nil {
		c.balance.Set(*balance)
		return
	}
	c.balance.RequestRefresh()
}

// applyBalance takes a pushed balance from a settlement that no longer
// matches the local bet, e.g. one that arrives after a local crash.
func (c *Client) applyBalance(balance *float64) {
	if balance != nil && c.balance != nil {
		c.balance.Set(*balance)
	}
}

func (c *Client) reject(rej *bet.ServerRejection) {
	c.metrics.ServerRejection(rej.Event)
	c.lastError = rej.Error()
	c.logger.Warn("server rejected command", "event", rej.Event, "message", rej.Message)
	c.notifier.Notify(rej)
}

// protocolError logs and counts a discarded frame. It never changes state.
func (c *Client) protocolError(err error) {
	event := ""
	var pe *protocol.ProtocolError
	if errors.As(err, &pe) {
		event = pe.Event
	}
	c.metrics.ProtocolError(event)
	c.logger.Warn("protocol error discarded", "event", event, "error", err)
}

func cashoutType(s string) feed.CashoutType {
	switch feed.CashoutType(s) {
	case feed.CashoutManual, feed.CashoutAuto:
		return feed.CashoutType(s)
	}
	return feed.CashoutManual
}
