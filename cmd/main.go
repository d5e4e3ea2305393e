package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"golang.org/x/sync/errgroup"

	"github.com/luca-patrignani/poker-lobby/config"
	"github.com/luca-patrignani/poker-lobby/registration"
	"github.com/luca-patrignani/poker-lobby/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	level, _ := cfg.Level()
	pterm.DefaultLogger.Level = ptermLevel(level)

	// Create a new slog logger backed by the default PTerm logger
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("P", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("oker ", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("L", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("obby", pterm.FgDarkGray.ToStyle()),
	).Render()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			pterm.Warning.Println("Registration cancelled.")
			os.Exit(130)
		}
		logger.Error("registration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var (
		l   *lobby
		err error
	)
	if cfg.Simulated() {
		pterm.Info.Printfln("No node configured, simulating a session with %d seats", cfg.SimSeats)
		l, err = newSimulatedLobby(cfg, logger)
	} else {
		pterm.Info.Printfln("Registering on contract %s via %s", cfg.Contract().Hex(), cfg.RPCURL)
		l, err = newLiveLobby(ctx, cfg, logger)
	}
	if err != nil {
		return err
	}
	defer l.close()

	if confirm, _ := pterm.DefaultInteractiveConfirm.WithDefaultText("Register for the next game?").WithDefaultValue(true).Show(); !confirm {
		pterm.Info.Println("Registration skipped.")
		return nil
	}
	pterm.Println()

	store := session.NewStore()
	spinner, _ := pterm.DefaultSpinner.Start("Waiting for the wallet ...")
	orchestrator, err := registration.New(l.gateway, l.dial, store,
		registration.WithLogger(logger),
		registration.WithPollInterval(cfg.PollInterval),
		registration.WithConnectTimeout(cfg.ConnectTimeout),
		registration.WithConfirmTimeout(cfg.ConfirmTimeout),
		registration.WithTransitionHook(func(st registration.Status) {
			spinner.UpdateText(phaseText(st))
		}),
		registration.WithReadingHook(func(remaining uint64) {
			spinner.UpdateText(remainingText(remaining))
		}),
	)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	defer orchestrator.Close()

	g, gctx := errgroup.WithContext(ctx)
	background, stopBackground := context.WithCancel(gctx)
	defer stopBackground()
	for _, task := range l.background {
		g.Go(func() error {
			return task(background)
		})
	}
	changed := store.Changed()
	g.Go(func() error {
		select {
		case <-background.Done():
		case <-changed:
			if p, ok := store.Player(); ok {
				logger.Info("registration confirmed", "address", p.Address)
			}
		}
		return nil
	})
	g.Go(func() error {
		defer stopBackground()
		if err := orchestrator.Register(gctx); err != nil {
			return err
		}
		return orchestrator.Wait(gctx)
	})
	if err := g.Wait(); err != nil {
		spinner.Fail(phaseText(orchestrator.Status()))
		return err
	}
	spinner.Success("The session is full")

	player, _ := store.Player()
	panels := [][]pterm.Panel{{playerPanel(player)}}
	if l.registry != nil {
		panels = append(panels, []pterm.Panel{ledgerPanel(l.registry)})
	}
	pterm.DefaultPanel.WithPanels(panels).Render()
	if l.registry != nil {
		if err := pterm.DefaultTable.WithHasHeader().WithData(seatTable(l.registry.Players(), player)).Render(); err != nil {
			return fmt.Errorf("render seats: %w", err)
		}
	}
	return nil
}
