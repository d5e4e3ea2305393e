package contract

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/luca-patrignani/poker-lobby/ledger"
	"github.com/luca-patrignani/poker-lobby/wallet"
)

var contractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// fakeNode serves both the contract reads and the keyed wallet's
// transaction path.
type fakeNode struct {
	mu           sync.Mutex
	abi          abi.ABI
	left         *big.Int
	callErr      error
	estimateErr  error
	pendingPolls int
	status       uint64
	sent         []*types.Transaction
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	parsed, err := DefaultABI()
	if err != nil {
		t.Fatal(err)
	}
	return &fakeNode{abi: parsed, left: big.NewInt(5), status: types.ReceiptStatusSuccessful}
}

func (n *fakeNode) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.callErr != nil {
		return nil, n.callErr
	}
	method, err := n.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(n.left)
}

func (n *fakeNode) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pendingPolls > 0 {
		n.pendingPolls--
		return nil, ethereum.NotFound
	}
	for _, tx := range n.sent {
		if tx.Hash() == txHash {
			return &types.Receipt{TxHash: txHash, Status: n.status, BlockNumber: big.NewInt(7)}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (n *fakeNode) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint64(len(n.sent)), nil
}

func (n *fakeNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (n *fakeNode) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if n.estimateErr != nil {
		return 0, n.estimateErr
	}
	return 21_000, nil
}

func (n *fakeNode) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, tx)
	return nil
}

func newEthClient(t *testing.T, node *fakeNode) *EthClient {
	t.Helper()
	p, err := wallet.GenerateKeyedProvider(wallet.WithBackend(node, big.NewInt(1337)))
	if err != nil {
		t.Fatal(err)
	}
	id, err := wallet.NewGateway(p).RequestIdentity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	dial := EthDialer(contractAddress, node.abi, node, WithReceiptInterval(5*time.Millisecond))
	c, err := dial(id)
	if err != nil {
		t.Fatal(err)
	}
	return c.(*EthClient)
}

func TestEthClientRemainingCapacity(t *testing.T) {
	node := newFakeNode(t)
	c := newEthClient(t, node)
	n, err := c.RemainingCapacity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("expected 5, got %d", n)
	}

	node.callErr = errors.New("connection refused")
	if _, err := c.RemainingCapacity(context.Background()); !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead, got %v", err)
	}
}

func TestEthClientRegistration(t *testing.T) {
	node := newFakeNode(t)
	node.pendingPolls = 2
	c := newEthClient(t, node)

	h, err := c.SubmitRegistration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(node.sent) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(node.sent))
	}
	tx := node.sent[0]
	if *tx.To() != contractAddress {
		t.Fatalf("transaction sent to %s", tx.To().Hex())
	}
	if !bytes.Equal(tx.Data(), node.abi.Methods[DefaultRegisterMethod].ID) {
		t.Fatalf("unexpected call data %x", tx.Data())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc, err := c.Await(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if rc.TxHash != h.Hash || rc.BlockNumber != 7 {
		t.Fatalf("unexpected receipt %+v", rc)
	}
}

func TestEthClientReverted(t *testing.T) {
	node := newFakeNode(t)
	node.status = types.ReceiptStatusFailed
	c := newEthClient(t, node)
	h, err := c.SubmitRegistration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Await(context.Background(), h); !errors.Is(err, ErrTransactionReverted) {
		t.Fatalf("expected ErrTransactionReverted, got %v", err)
	}
}

func TestEthClientSubmissionError(t *testing.T) {
	node := newFakeNode(t)
	node.estimateErr = errors.New("execution reverted: session is full")
	c := newEthClient(t, node)
	if _, err := c.SubmitRegistration(context.Background()); !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
	if len(node.sent) != 0 {
		t.Fatal("a rejected registration must not be broadcast")
	}
}

func TestEthClientAwaitCancelled(t *testing.T) {
	node := newFakeNode(t)
	c := newEthClient(t, node)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Await(ctx, TxHandle{Hash: common.HexToHash("0x01")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestNewEthClientUnknownMethod(t *testing.T) {
	node := newFakeNode(t)
	p, err := wallet.GenerateKeyedProvider()
	if err != nil {
		t.Fatal(err)
	}
	id, err := wallet.NewGateway(p).RequestIdentity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewEthClient(contractAddress, node.abi, id, node, WithMethods("playersLeft", DefaultRegisterMethod))
	if err == nil {
		t.Fatal("expected an error for a method missing from the abi")
	}
}

func TestParseABIRejectsGarbage(t *testing.T) {
	if _, err := ParseABI(strings.NewReader("not json")); err == nil {
		t.Fatal("expected a parse error")
	}
	if _, err := LoadABI(""); err != nil {
		t.Fatalf("empty path should load the default abi: %v", err)
	}
}

func TestToUint64(t *testing.T) {
	if n, err := toUint64(uint8(3)); err != nil || n != 3 {
		t.Fatalf("uint8: got %d, %v", n, err)
	}
	if _, err := toUint64(big.NewInt(-1)); err == nil {
		t.Fatal("negative big.Int should be rejected")
	}
	if _, err := toUint64(int32(-2)); err == nil {
		t.Fatal("negative int32 should be rejected")
	}
	if _, err := toUint64("3"); err == nil {
		t.Fatal("strings should be rejected")
	}
}

func newLedgerClient(t *testing.T, registry *ledger.Registry) *LedgerClient {
	t.Helper()
	p, err := wallet.GenerateKeyedProvider()
	if err != nil {
		t.Fatal(err)
	}
	id, err := wallet.NewGateway(p).RequestIdentity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c, err := LedgerDialer(registry)(id)
	if err != nil {
		t.Fatal(err)
	}
	return c.(*LedgerClient)
}

func TestLedgerClientRegistration(t *testing.T) {
	registry, err := ledger.NewRegistry(2)
	if err != nil {
		t.Fatal(err)
	}
	c := newLedgerClient(t, registry)
	n, err := c.RemainingCapacity(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 seats, got %d, %v", n, err)
	}
	h, err := c.SubmitRegistration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Mine(); err != nil {
		t.Fatal(err)
	}
	rc, err := c.Await(context.Background(), h)
	if err != nil {
		t.Fatal(err)
	}
	if rc.Status != ledger.ReceiptStatusSuccessful {
		t.Fatalf("expected a successful receipt, got %+v", rc)
	}
	if n, _ := c.RemainingCapacity(context.Background()); n != 1 {
		t.Fatalf("expected 1 seat left, got %d", n)
	}
}

func TestLedgerClientErrors(t *testing.T) {
	registry, err := ledger.NewRegistry(1)
	if err != nil {
		t.Fatal(err)
	}
	first := newLedgerClient(t, registry)
	second := newLedgerClient(t, registry)

	h1, err := first.SubmitRegistration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h2, err := second.SubmitRegistration(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Mine(); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Await(context.Background(), h1); err != nil {
		t.Fatal(err)
	}
	if _, err := second.Await(context.Background(), h2); !errors.Is(err, ErrTransactionReverted) {
		t.Fatalf("expected ErrTransactionReverted, got %v", err)
	}

	late := newLedgerClient(t, registry)
	if _, err := late.SubmitRegistration(context.Background()); !errors.Is(err, ErrSubmission) || !errors.Is(err, ledger.ErrSessionFull) {
		t.Fatalf("expected ErrSubmission wrapping ErrSessionFull, got %v", err)
	}
}
