package game

import (
	"log/slog"

	"github.com/rickgao/crashline/internal/bet"
	"github.com/rickgao/crashline/internal/round"
)

// Notifier is the user-facing message sink. It receives server rejections
// and failures of actions the client took on its own. Calls happen on the
// event loop and must not block.
type Notifier interface {
	Notify(err error)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(err error) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("notification", "error", err)
}

// Recorder receives settled rounds and bets for the audit trail. Calls
// happen on the event loop and must not block.
type Recorder interface {
	RecordRound(r round.Round)
	RecordBet(b bet.Bet)
}

// BalanceSource is the wallet balance collaborator.
type BalanceSource interface {
	Available() (amount float64, ok bool)
	Set(amount float64)
	RequestRefresh()
	OnChange(fn func(float64))
}
