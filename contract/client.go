// Package contract binds a signing identity to the registration contract.
//
// Client is the remote surface the registration flow consumes: a read-only
// capacity call, a state-mutating registration call and a confirmation wait.
// EthClient talks to an Ethereum node through go-ethereum; LedgerClient talks
// to the in-process ledger.Registry.
package contract

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luca-patrignani/poker-lobby/wallet"
)

var (
	// ErrRead reports a failed capacity read. It is transient.
	ErrRead = errors.New("read remaining capacity")
	// ErrSubmission reports a registration rejected before inclusion.
	ErrSubmission = errors.New("submit registration")
	// ErrTransactionReverted reports a registration included but failed on
	// execution; the fees are spent.
	ErrTransactionReverted = errors.New("transaction reverted")
)

// TxHandle references a submitted, possibly pending, transaction.
type TxHandle struct {
	Hash common.Hash
}

// Receipt is the mined outcome of a transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      uint64
}

type Client interface {
	// RemainingCapacity returns the number of open registration slots.
	RemainingCapacity(ctx context.Context) (uint64, error)

	// SubmitRegistration sends the registration transaction.
	SubmitRegistration(ctx context.Context) (TxHandle, error)

	// Await blocks until the transaction is mined.
	Await(ctx context.Context, h TxHandle) (Receipt, error)
}

// Dialer constructs a Client bound to signer.
type Dialer func(signer wallet.Signer) (Client, error)
