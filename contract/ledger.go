package contract

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/luca-patrignani/poker-lobby/ledger"
	"github.com/luca-patrignani/poker-lobby/wallet"
)

// LedgerClient is a Client for the in-process registration registry.
// Registrations are authorized by a personal signature of the identity.
type LedgerClient struct {
	registry *ledger.Registry
	signer   wallet.Signer
}

var _ Client = (*LedgerClient)(nil)

func NewLedgerClient(registry *ledger.Registry, signer wallet.Signer) *LedgerClient {
	return &LedgerClient{registry: registry, signer: signer}
}

func LedgerDialer(registry *ledger.Registry) Dialer {
	return func(signer wallet.Signer) (Client, error) {
		if signer == nil {
			return nil, fmt.Errorf("contract client needs a signer")
		}
		return NewLedgerClient(registry, signer), nil
	}
}

func (c *LedgerClient) RemainingCapacity(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return uint64(c.registry.PlayersLeft()), nil
}

func (c *LedgerClient) SubmitRegistration(ctx context.Context) (TxHandle, error) {
	from := c.signer.Address()
	nonce := uuid.NewString()
	sig, err := c.signer.Sign(ctx, ledger.RegistrationMessage(c.registry.ID(), from, nonce))
	if err != nil {
		return TxHandle{}, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	hash, err := c.registry.Submit(ledger.Tx{
		From:      from,
		Method:    ledger.MethodRegister,
		Nonce:     nonce,
		Signature: sig,
	})
	if err != nil {
		return TxHandle{}, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	return TxHandle{Hash: hash}, nil
}

func (c *LedgerClient) Await(ctx context.Context, h TxHandle) (Receipt, error) {
	rc, err := c.registry.WaitReceipt(ctx, h.Hash)
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{TxHash: rc.TxHash, BlockNumber: uint64(rc.BlockIndex), Status: rc.Status}
	if rc.Status != ledger.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s in block %d: %s", ErrTransactionReverted, h.Hash.Hex(), rc.BlockIndex, rc.Reason)
	}
	return receipt, nil
}
