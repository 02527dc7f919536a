// streamtest connects to a crash game socket and prints decoded events to the console.
// Usage: go run ./cmd/streamtest --config configs/crashclient.local.yaml
//
// Environment variables referenced by the config (for example CRASH_TOKEN)
// may be supplied through a .env file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/crashline/internal/config"
	"github.com/rickgao/crashline/internal/connection"
	"github.com/rickgao/crashline/internal/protocol"
)

func main() {
	configPath := flag.String("config", "configs/crashclient.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := config.LoadEnvFiles(".env"); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientCfg := connection.DefaultClientConfig()
	clientCfg.URL = cfg.API.WSURL
	clientCfg.Token = cfg.API.Token

	client, err := connection.Dial(ctx, clientCfg, logger)
	if err != nil {
		logger.Error("failed to connect", "url", cfg.API.WSURL, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	decoder := protocol.NewDecoder(logger)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := decoder.Stats()
				logger.Info("stats",
					"received", s.Received,
					"decoded", s.Decoded,
					"parse_errors", s.ParseErrors,
					"unknown", s.Unknown,
					"rejected", s.Rejected,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "url", cfg.API.WSURL)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete")
			return
		case err := <-client.Errors():
			logger.Error("connection lost", "error", err)
			return
		case msg := <-client.Messages():
			ev, err := decoder.Decode(msg.Data)
			if err != nil {
				fmt.Printf("[INVALID] %v: %s\n", err, msg.Data)
				continue
			}
			printEvent(ev, msg.ReceivedAt, *verbose)
		}
	}
}

func printEvent(ev protocol.Event, at time.Time, verbose bool) {
	ts := at.Format("15:04:05.000")
	if verbose {
		data, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Printf("%s [%s] %s\n", ts, ev.EventName(), data)
		return
	}

	switch e := ev.(type) {
	case protocol.RoundStart:
		fmt.Printf("%s [ROUND] start %s\n", ts, e.RoundID)
	case protocol.RoundLockBets:
		fmt.Printf("%s [ROUND] bets locked\n", ts)
	case protocol.MultiplierUpdate:
		fmt.Printf("%s [TICK] %.2fx\n", ts, e.Multiplier)
	case protocol.RoundCrash:
		fmt.Printf("%s [CRASH] %.2fx\n", ts, e.CrashPoint)
	case protocol.PlayerBet:
		fmt.Printf("%s [BET] %s %s %.2f\n", ts, e.BetID, e.User, e.Amount)
	case protocol.PlayerCashout:
		fmt.Printf("%s [CASHOUT] %s %.2fx payout=%.2f (%s)\n", ts, e.BetID, e.Multiplier, e.Payout, e.CashoutType)
	default:
		fmt.Printf("%s [%s]\n", ts, ev.EventName())
	}
}
