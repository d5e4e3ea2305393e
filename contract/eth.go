package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/luca-patrignani/poker-lobby/wallet"
)

// Backend is the node access EthClient needs. *ethclient.Client implements it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthClient is a Client for a registration contract deployed on an Ethereum
// chain. Reads go to the node, transactions go through the signer.
type EthClient struct {
	address         common.Address
	abi             abi.ABI
	signer          wallet.Signer
	backend         Backend
	capacityMethod  string
	registerMethod  string
	receiptInterval time.Duration
}

var _ Client = (*EthClient)(nil)

type EthOption func(*EthClient)

// WithMethods overrides the contract method names.
func WithMethods(capacity, register string) EthOption {
	return func(c *EthClient) {
		c.capacityMethod = capacity
		c.registerMethod = register
	}
}

// WithReceiptInterval sets how often Await polls for the receipt.
func WithReceiptInterval(d time.Duration) EthOption {
	return func(c *EthClient) {
		c.receiptInterval = d
	}
}

func NewEthClient(address common.Address, contractABI abi.ABI, signer wallet.Signer, backend Backend, opts ...EthOption) (*EthClient, error) {
	c := &EthClient{
		address:         address,
		abi:             contractABI,
		signer:          signer,
		backend:         backend,
		capacityMethod:  DefaultCapacityMethod,
		registerMethod:  DefaultRegisterMethod,
		receiptInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if signer == nil || backend == nil {
		return nil, fmt.Errorf("contract client needs a signer and a backend")
	}
	for _, name := range []string{c.capacityMethod, c.registerMethod} {
		if _, ok := c.abi.Methods[name]; !ok {
			return nil, fmt.Errorf("method %q not found in contract abi", name)
		}
	}
	if c.receiptInterval <= 0 {
		return nil, fmt.Errorf("receipt interval must be positive")
	}
	return c, nil
}

// EthDialer returns a Dialer producing EthClients for the given contract.
func EthDialer(address common.Address, contractABI abi.ABI, backend Backend, opts ...EthOption) Dialer {
	return func(signer wallet.Signer) (Client, error) {
		return NewEthClient(address, contractABI, signer, backend, opts...)
	}
}

func (c *EthClient) RemainingCapacity(ctx context.Context) (uint64, error) {
	data, err := c.abi.Pack(c.capacityMethod)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRead, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.signer.Address(),
		To:   &c.address,
		Data: data,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRead, err)
	}
	values, err := c.abi.Unpack(c.capacityMethod, out)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%w: expected 1 return value, got %d", ErrRead, len(values))
	}
	n, err := toUint64(values[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return n, nil
}

func (c *EthClient) SubmitRegistration(ctx context.Context) (TxHandle, error) {
	data, err := c.abi.Pack(c.registerMethod)
	if err != nil {
		return TxHandle{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	hash, err := c.signer.SendTransaction(ctx, wallet.TxRequest{To: &c.address, Data: data})
	if err != nil {
		return TxHandle{}, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	return TxHandle{Hash: hash}, nil
}

// Await polls the node until the transaction has a receipt. Lookup errors
// other than ethereum.NotFound are retried until ctx is done.
func (c *EthClient) Await(ctx context.Context, h TxHandle) (Receipt, error) {
	ticker := time.NewTicker(c.receiptInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, h.Hash)
		if err == nil {
			rc := Receipt{TxHash: receipt.TxHash, Status: receipt.Status}
			if receipt.BlockNumber != nil {
				rc.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if receipt.Status == types.ReceiptStatusFailed {
				return rc, fmt.Errorf("%w: %s in block %d", ErrTransactionReverted, h.Hash.Hex(), rc.BlockNumber)
			}
			return rc, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return Receipt{}, errors.Join(ctx.Err(), lastErr)
			}
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case *big.Int:
		if n.Sign() < 0 || !n.IsUint64() {
			return 0, fmt.Errorf("capacity %s out of range", n)
		}
		return n.Uint64(), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int8:
		return fromInt64(int64(n))
	case int16:
		return fromInt64(int64(n))
	case int32:
		return fromInt64(int64(n))
	case int64:
		return fromInt64(n)
	}
	return 0, fmt.Errorf("unsupported capacity type %T", v)
}

func fromInt64(i int64) (uint64, error) {
	if i < 0 {
		return 0, fmt.Errorf("negative capacity %d", i)
	}
	return uint64(i), nil
}
