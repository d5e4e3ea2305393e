package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/luca-patrignani/poker-lobby/wallet"
)

// MethodRegister is the only state-mutating method of the registry.
const MethodRegister = "registerForGame"

var (
	ErrSessionFull        = errors.New("execution reverted: session is full")
	ErrAlreadyRegistered  = errors.New("execution reverted: player already registered")
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrUnknownMethod      = errors.New("unknown method")
	ErrKnownTransaction   = errors.New("transaction already known")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// Registry is a registration contract with a fixed number of seats.
type Registry struct {
	id       string
	capacity int
	sealer   *Sealer
	chain    *Blockchain
	logger   *slog.Logger

	mu       sync.Mutex
	players  []common.Address
	seated   map[common.Address]bool
	pending  []Tx
	known    map[common.Hash]bool
	receipts map[common.Hash]Receipt
	// closed and replaced after every mined block
	mined chan struct{}
}

type RegistryOption func(*Registry)

// WithSealer seals every block of the registry chain with s.
func WithSealer(s *Sealer) RegistryOption {
	return func(r *Registry) {
		r.sealer = s
	}
}

func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithID sets the identifier bound into registration signatures.
func WithID(id string) RegistryOption {
	return func(r *Registry) {
		r.id = id
	}
}

func NewRegistry(capacity int, opts ...RegistryOption) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	r := &Registry{
		id:       "poker-lobby",
		capacity: capacity,
		logger:   slog.Default(),
		seated:   make(map[common.Address]bool),
		known:    make(map[common.Hash]bool),
		receipts: make(map[common.Hash]Receipt),
		mined:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	meta := Metadata{PlayersLeft: capacity, Extra: map[string]string{"registry": r.id}}
	if r.sealer != nil {
		meta.Sequencer = r.sealer.ID()
	}
	chain, err := NewBlockchain(r.sealer, meta)
	if err != nil {
		return nil, err
	}
	r.chain = chain
	return r, nil
}

func (r *Registry) ID() string { return r.id }

func (r *Registry) Capacity() int { return r.capacity }

func (r *Registry) Chain() *Blockchain { return r.chain }

// PlayersLeft returns the number of seats still open in the latest block.
// Pending transactions are not counted.
func (r *Registry) PlayersLeft() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capacity - len(r.players)
}

func (r *Registry) IsRegistered(addr common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seated[addr]
}

// Players returns the registered accounts in registration order.
func (r *Registry) Players() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common.Address(nil), r.players...)
}

// RegistrationMessage is the payload a player signs to register.
func RegistrationMessage(registryID string, from common.Address, nonce string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", registryID, MethodRegister, from.Hex(), nonce))
}

// TxHash derives the hash identifying tx.
func TxHash(registryID string, tx Tx) common.Hash {
	return crypto.Keccak256Hash(RegistrationMessage(registryID, tx.From, tx.Nonce), tx.Signature)
}

// Submit adds tx to the pending pool. Calls that would revert against the
// current state are rejected immediately.
func (r *Registry) Submit(tx Tx) (common.Hash, error) {
	if tx.Method != MethodRegister {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrUnknownMethod, tx.Method)
	}
	signer, err := wallet.RecoverSigner(RegistrationMessage(r.id, tx.From, tx.Nonce), tx.Signature)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != tx.From {
		return common.Hash{}, fmt.Errorf("%w: signed by %s, sent from %s", ErrInvalidSignature, signer.Hex(), tx.From.Hex())
	}
	tx.Hash = TxHash(r.id, tx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.known[tx.Hash] {
		return common.Hash{}, ErrKnownTransaction
	}
	if r.seated[tx.From] {
		return common.Hash{}, ErrAlreadyRegistered
	}
	if len(r.players) >= r.capacity {
		return common.Hash{}, ErrSessionFull
	}
	r.known[tx.Hash] = true
	r.pending = append(r.pending, tx)
	r.logger.Debug("registration submitted", "tx", tx.Hash.Hex(), "from", tx.From.Hex())
	return tx.Hash, nil
}

// Mine executes every pending transaction in submission order and appends
// the resulting block. A block is produced even when nothing is pending.
func (r *Registry) Mine() (Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txs := r.pending
	receipts := make([]Receipt, len(txs))
	index := r.chain.Len()
	var seated []common.Address
	for i, tx := range txs {
		rc := Receipt{TxHash: tx.Hash, BlockIndex: index, Status: ReceiptStatusSuccessful}
		switch {
		case r.seated[tx.From] || containsAddress(seated, tx.From):
			rc.Status = ReceiptStatusFailed
			rc.Reason = ErrAlreadyRegistered.Error()
		case len(r.players)+len(seated) >= r.capacity:
			rc.Status = ReceiptStatusFailed
			rc.Reason = ErrSessionFull.Error()
		default:
			seated = append(seated, tx.From)
		}
		receipts[i] = rc
	}

	meta := Metadata{PlayersLeft: r.capacity - len(r.players) - len(seated)}
	if r.sealer != nil {
		meta.Sequencer = r.sealer.ID()
	}
	if txs == nil {
		txs = []Tx{}
	}
	block, err := r.chain.Append(txs, receipts, meta)
	if err != nil {
		return Block{}, err
	}

	for _, addr := range seated {
		r.seated[addr] = true
	}
	r.players = append(r.players, seated...)
	for _, rc := range receipts {
		r.receipts[rc.TxHash] = rc
	}
	r.pending = nil
	close(r.mined)
	r.mined = make(chan struct{})

	r.logger.Debug("block mined", "index", block.Index, "txs", len(block.Txs), "players_left", meta.PlayersLeft)
	return block, nil
}

// Receipt returns the receipt of a mined transaction.
func (r *Registry) Receipt(hash common.Hash) (Receipt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[hash]
	return rc, ok
}

// WaitReceipt blocks until the transaction is mined or ctx is done.
func (r *Registry) WaitReceipt(ctx context.Context, hash common.Hash) (Receipt, error) {
	for {
		r.mu.Lock()
		rc, ok := r.receipts[hash]
		known := r.known[hash]
		mined := r.mined
		r.mu.Unlock()

		if ok {
			return rc, nil
		}
		if !known {
			return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, hash.Hex())
		}
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-mined:
		}
	}
}

// Run mines a block every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Mine(); err != nil {
				return err
			}
		}
	}
}

func (r *Registry) Verify() error {
	return r.chain.Verify()
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
