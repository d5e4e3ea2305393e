package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Provider is the wallet capability injected by the host environment.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Gateway requests signing identities from a Provider.
type Gateway struct {
	provider Provider
}

// NewGateway returns a gateway over p. p may be nil, in which case every
// request fails with ErrWalletUnavailable.
func NewGateway(p Provider) *Gateway {
	return &Gateway{provider: p}
}

// Available reports whether a wallet capability is present.
func (g *Gateway) Available() bool {
	return g != nil && g.provider != nil
}

// RequestIdentity triggers the wallet's authorization prompt and returns an
// identity bound to the first authorized account.
func (g *Gateway) RequestIdentity(ctx context.Context) (*Identity, error) {
	if !g.Available() {
		return nil, ErrWalletUnavailable
	}
	var accounts []common.Address
	if err := g.provider.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, classify(err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no account authorized", ErrUserRejected)
	}
	return &Identity{provider: g.provider, address: accounts[0]}, nil
}
