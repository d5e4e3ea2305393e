package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyedBackend is the node access a KeyedProvider needs to send transactions.
// *ethclient.Client implements it.
type KeyedBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyedProvider is a Provider backed by a local private key. It answers the
// subset of the wallet API used by Gateway and Identity.
type KeyedProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend KeyedBackend
	chainID *big.Int
	approve func(method string) bool

	// serializes nonce assignment
	mu sync.Mutex
}

type KeyedOption func(*KeyedProvider)

// WithBackend enables eth_sendTransaction through b on the given chain.
func WithBackend(b KeyedBackend, chainID *big.Int) KeyedOption {
	return func(p *KeyedProvider) {
		p.backend = b
		p.chainID = chainID
	}
}

// WithApproval installs the prompt shown before authorizing accounts, signing
// or sending. Returning false rejects the request with code 4001.
func WithApproval(fn func(method string) bool) KeyedOption {
	return func(p *KeyedProvider) {
		p.approve = fn
	}
}

func NewKeyedProvider(key *ecdsa.PrivateKey, opts ...KeyedOption) *KeyedProvider {
	p := &KeyedProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateKeyedProvider creates a provider with a fresh random key.
func GenerateKeyedProvider(opts ...KeyedOption) (*KeyedProvider, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewKeyedProvider(key, opts...), nil
}

// KeyedProviderFromHex parses a hex private key, with or without 0x prefix.
func KeyedProviderFromHex(hexKey string, opts ...KeyedOption) (*KeyedProvider, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeyedProvider(key, opts...), nil
}

func (p *KeyedProvider) Address() common.Address { return p.address }

func (p *KeyedProvider) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		value interface{}
		err   error
	)
	switch method {
	case "eth_accounts":
		value = []common.Address{p.address}
	case "eth_requestAccounts":
		if !p.approved(method) {
			return rejected()
		}
		value = []common.Address{p.address}
	case "eth_chainId":
		if p.chainID == nil {
			return unsupported(method)
		}
		value = (*hexutil.Big)(p.chainID)
	case "personal_sign":
		if !p.approved(method) {
			return rejected()
		}
		value, err = p.personalSign(args)
	case "eth_sendTransaction":
		if p.backend == nil {
			return unsupported(method)
		}
		if !p.approved(method) {
			return rejected()
		}
		value, err = p.sendTransaction(ctx, args)
	default:
		return unsupported(method)
	}
	if err != nil {
		return err
	}
	return assign(result, value)
}

func (p *KeyedProvider) approved(method string) bool {
	return p.approve == nil || p.approve(method)
}

func (p *KeyedProvider) personalSign(args []interface{}) (hexutil.Bytes, error) {
	var data hexutil.Bytes
	if err := decodeArg(args, 0, &data); err != nil {
		return nil, err
	}
	var from common.Address
	if err := decodeArg(args, 1, &from); err != nil {
		return nil, err
	}
	if from != p.address {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "unknown account " + from.Hex()}
	}
	sig, err := crypto.Sign(accounts.TextHash(data), p.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (p *KeyedProvider) sendTransaction(ctx context.Context, args []interface{}) (common.Hash, error) {
	var req sendTxArgs
	if err := decodeArg(args, 0, &req); err != nil {
		return common.Hash{}, err
	}
	if req.From != p.address {
		return common.Hash{}, &ProviderError{Code: CodeUnauthorized, Message: "unknown account " + req.From.Hex()}
	}
	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	nonce, err := p.backend.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := p.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     p.address,
		To:       req.To,
		GasPrice: gasPrice,
		Value:    value,
		Data:     req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       req.To,
		Value:    value,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return common.Hash{}, err
	}
	if err := p.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func rejected() error {
	return &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
}

func unsupported(method string) error {
	return &ProviderError{Code: CodeUnsupportedMethod, Message: fmt.Sprintf("method %s is not supported", method)}
}

// assign copies value into result the way a JSON-RPC client would.
func assign(result, value interface{}) error {
	if result == nil {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func decodeArg(args []interface{}, i int, target interface{}) error {
	if i >= len(args) {
		return &ProviderError{Code: -32602, Message: fmt.Sprintf("missing argument %d", i)}
	}
	b, err := json.Marshal(args[i])
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, target); err != nil {
		return &ProviderError{Code: -32602, Message: fmt.Sprintf("invalid argument %d: %v", i, err)}
	}
	return nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
