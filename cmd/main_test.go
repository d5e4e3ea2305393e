package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luca-patrignani/poker-lobby/config"
	"github.com/luca-patrignani/poker-lobby/registration"
	"github.com/luca-patrignani/poker-lobby/session"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func simulatedConfig(seats int) config.Config {
	return config.Config{
		PollInterval:     5 * time.Millisecond,
		ConnectTimeout:   time.Second,
		ConfirmTimeout:   5 * time.Second,
		SimSeats:         seats,
		SimBlockInterval: 5 * time.Millisecond,
		LogLevel:         "info",
	}
}

// TestSimulatedLobby runs the simulated opponents and block production
// alongside one registering client, the way run does without the prompts.
func TestSimulatedLobby(t *testing.T) {
	const seats = 4
	l, err := newSimulatedLobby(simulatedConfig(seats), discardLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer l.close()
	if len(l.background) != seats {
		t.Fatalf("expected block production and %d opponents, got %d tasks", seats-1, len(l.background))
	}

	store := session.NewStore()
	o, err := registration.New(l.gateway, l.dial, store,
		registration.WithLogger(discardLogger),
		registration.WithPollInterval(5*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	background, stop := context.WithCancel(ctx)
	errChan := make(chan error, len(l.background))
	for _, task := range l.background {
		go func() {
			errChan <- task(background)
		}()
	}
	if err := o.Register(ctx); err != nil {
		t.Fatal(err)
	}
	if err := o.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	stop()
	for range l.background {
		if err := <-errChan; err != nil {
			t.Fatal(err)
		}
	}

	if l.registry.PlayersLeft() != 0 {
		t.Fatalf("expected a full session, %d seats left", l.registry.PlayersLeft())
	}
	if !store.IsRegistered() {
		t.Fatal("registered flag not set")
	}
	player, _ := store.Player()
	rows := seatTable(l.registry.Players(), player)
	if len(rows) != seats+1 {
		t.Fatalf("expected %d rows, got %d", seats+1, len(rows))
	}
	marked := 0
	for _, row := range rows[1:] {
		if row[2] == "you" {
			marked++
			if row[1] != player.Address {
				t.Fatalf("marked row %v is not %s", row, player.Address)
			}
		}
	}
	if marked != 1 {
		t.Fatalf("expected exactly one row marked, got %d", marked)
	}
	if err := l.registry.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestSimulatedLobbyRejectsBadKey(t *testing.T) {
	cfg := simulatedConfig(2)
	cfg.PrivateKey = "not-a-key"
	if _, err := newSimulatedLobby(cfg, discardLogger); err == nil {
		t.Fatal("expected an error for an invalid private key")
	}
}

func TestPhaseText(t *testing.T) {
	cases := []struct {
		status   registration.Status
		contains string
	}{
		{registration.Status{Phase: registration.PhaseConnecting}, "wallet"},
		{registration.Status{Phase: registration.PhaseAwaitingConfirmation, TxHash: common.HexToHash("0xbeef")}, "0x00000000"},
		{registration.Status{Phase: registration.PhasePolling}, "waiting for the other players"},
		{registration.Status{Phase: registration.PhasePolling, HasReading: true, Remaining: 3}, "3 players left to register"},
		{registration.Status{Phase: registration.PhasePolling, HasReading: true, Remaining: 1}, "1 player left to register"},
		{registration.Status{Phase: registration.PhaseComplete}, "full"},
		{registration.Status{Phase: registration.PhaseFailed, Err: errors.New("boom")}, "Registration failed: boom"},
	}
	for _, c := range cases {
		if text := phaseText(c.status); !strings.Contains(text, c.contains) {
			t.Fatalf("%s: expected %q in %q", c.status, c.contains, text)
		}
	}
}

func TestPtermLevel(t *testing.T) {
	if ptermLevel(slog.LevelDebug) >= ptermLevel(slog.LevelInfo) {
		t.Fatal("debug should be more verbose than info")
	}
	if ptermLevel(slog.LevelWarn) >= ptermLevel(slog.LevelError) {
		t.Fatal("warn should be more verbose than error")
	}
}
