package game

import (
	"log/slog"

	"github.com/rickgao/crashline/internal/metrics"
	"github.com/rickgao/crashline/internal/protocol"
)

// sender is the session's outbound surface.
type sender interface {
	Send(data []byte) bool
}

// dispatcher encodes commands onto the session. It never queues: a false
// return is final.
type dispatcher struct {
	out     sender
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (d *dispatcher) Dispatch(cmd protocol.Command) bool {
	data, err := protocol.Encode(cmd)
	if err != nil {
		d.logger.Error("encode command", "command", cmd.CommandName(), "error", err)
		d.metrics.CommandDispatched(cmd.CommandName(), false)
		return false
	}

	sent := d.out.Send(data)
	d.metrics.CommandDispatched(cmd.CommandName(), sent)
	if !sent {
		d.logger.Warn("command not sent", "command", cmd.CommandName())
	}
	return sent
}
