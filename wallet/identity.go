package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is a credential able to authorize transactions for one account.
type Signer interface {
	// Address returns the account the signer acts for.
	Address() common.Address

	// SendTransaction signs and submits a transaction, returning its hash.
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)

	// Sign produces an EIP-191 personal signature of data.
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// TxRequest describes a state-mutating call. Nonce, gas and fees are left to
// the wallet.
type TxRequest struct {
	To    *common.Address
	Data  []byte
	Value *big.Int
}

type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// Identity is a Signer whose key stays inside the wallet provider.
type Identity struct {
	provider Provider
	address  common.Address
}

var _ Signer = (*Identity)(nil)

func (id *Identity) Address() common.Address { return id.address }

func (id *Identity) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	args := sendTxArgs{From: id.address, To: req.To, Data: req.Data}
	if req.Value != nil {
		args.Value = (*hexutil.Big)(req.Value)
	}
	var hash common.Hash
	if err := id.provider.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, classify(err)
	}
	return hash, nil
}

func (id *Identity) Sign(ctx context.Context, data []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := id.provider.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(data), id.address); err != nil {
		return nil, classify(err)
	}
	return sig, nil
}

// RecoverSigner returns the account that produced the personal signature sig
// over data. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(data, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	s := make([]byte, crypto.SignatureLength)
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(data), s)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
