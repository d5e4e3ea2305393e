package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/luca-patrignani/poker-lobby/config"
	"github.com/luca-patrignani/poker-lobby/contract"
	"github.com/luca-patrignani/poker-lobby/ledger"
	"github.com/luca-patrignani/poker-lobby/registration"
	"github.com/luca-patrignani/poker-lobby/session"
	"github.com/luca-patrignani/poker-lobby/wallet"
)

const defaultRPCPort = 8545

// lobby is the environment a registration runs in.
type lobby struct {
	gateway *wallet.Gateway
	dial    contract.Dialer
	// background tasks run until their context is cancelled
	background []func(ctx context.Context) error
	// registry is set in simulated mode
	registry *ledger.Registry
	close    func()
}

func newLiveLobby(ctx context.Context, cfg config.Config, logger *slog.Logger) (*lobby, error) {
	rpcURL, err := endpointURL(cfg.RPCURL, defaultRPCPort)
	if err != nil {
		return nil, err
	}
	node, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial node %s: %w", rpcURL, err)
	}
	contractABI, err := contract.LoadABI(cfg.ContractABI)
	if err != nil {
		node.Close()
		return nil, err
	}

	closers := []func(){node.Close}
	var provider wallet.Provider
	if cfg.PrivateKey != "" {
		chainID := big.NewInt(cfg.ChainID)
		if cfg.ChainID == 0 {
			if chainID, err = node.ChainID(ctx); err != nil {
				node.Close()
				return nil, fmt.Errorf("query chain id: %w", err)
			}
		}
		keyed, err := wallet.KeyedProviderFromHex(cfg.PrivateKey, wallet.WithBackend(node, chainID))
		if err != nil {
			node.Close()
			return nil, err
		}
		logger.Info("using keyed wallet", "address", keyed.Address().Hex(), "chain", chainID)
		provider = keyed
	} else if walletURL, err := endpointURL(cfg.WalletURL, defaultRPCPort); err != nil {
		logger.Warn("invalid wallet endpoint", "error", err)
	} else if client, err := rpc.DialContext(ctx, walletURL); err != nil {
		// registration reports the missing wallet
		logger.Warn("wallet endpoint unreachable", "url", walletURL, "error", err)
	} else {
		provider = client
		closers = append(closers, client.Close)
	}

	return &lobby{
		gateway: wallet.NewGateway(provider),
		dial:    contract.EthDialer(cfg.Contract(), contractABI, node, contract.WithReceiptInterval(cfg.PollInterval)),
		close: func() {
			for _, c := range closers {
				c()
			}
		},
	}, nil
}

// newSimulatedLobby runs a registry with cfg.SimSeats seats on an in-process
// ledger and fills all seats but one with simulated opponents.
func newSimulatedLobby(cfg config.Config, logger *slog.Logger) (*lobby, error) {
	registry, err := ledger.NewRegistry(cfg.SimSeats,
		ledger.WithSealer(ledger.NewSealer()),
		ledger.WithLogger(logger.With("component", "ledger")),
	)
	if err != nil {
		return nil, err
	}
	var provider *wallet.KeyedProvider
	if cfg.PrivateKey != "" {
		provider, err = wallet.KeyedProviderFromHex(cfg.PrivateKey)
	} else {
		provider, err = wallet.GenerateKeyedProvider()
	}
	if err != nil {
		return nil, err
	}
	logger.Info("using keyed wallet", "address", provider.Address().Hex())

	l := &lobby{
		gateway:  wallet.NewGateway(provider),
		dial:     contract.LedgerDialer(registry),
		registry: registry,
		close:    func() {},
	}
	l.background = append(l.background, func(ctx context.Context) error {
		return registry.Run(ctx, cfg.SimBlockInterval)
	})
	for i := 1; i < cfg.SimSeats; i++ {
		opponent, err := newOpponent(registry, cfg, logger.With("opponent", i))
		if err != nil {
			return nil, err
		}
		delay := time.Duration(i) * cfg.SimBlockInterval
		l.background = append(l.background, func(ctx context.Context) error {
			return opponent.join(ctx, delay)
		})
	}
	return l, nil
}

// opponent is a simulated player registering through its own orchestrator.
type opponent struct {
	orchestrator *registration.Orchestrator
}

func newOpponent(registry *ledger.Registry, cfg config.Config, logger *slog.Logger) (*opponent, error) {
	provider, err := wallet.GenerateKeyedProvider()
	if err != nil {
		return nil, err
	}
	o, err := registration.New(wallet.NewGateway(provider), contract.LedgerDialer(registry), session.NewStore(),
		registration.WithLogger(logger),
		registration.WithPollInterval(cfg.PollInterval),
	)
	if err != nil {
		return nil, err
	}
	return &opponent{orchestrator: o}, nil
}

// join registers after delay and waits for the session to fill. It returns
// nil when ctx ends first.
func (p *opponent) join(ctx context.Context, delay time.Duration) error {
	defer p.orchestrator.Close()
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(delay):
	}
	if err := p.orchestrator.Register(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("simulated opponent: %w", err)
	}
	select {
	case <-ctx.Done():
	case <-p.orchestrator.Done():
	}
	return nil
}
