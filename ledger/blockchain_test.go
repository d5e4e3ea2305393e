package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testTx(n byte) (Tx, Receipt) {
	tx := Tx{
		Hash:   common.BytesToHash([]byte{n}),
		From:   common.BytesToAddress([]byte{n}),
		Method: MethodRegister,
		Nonce:  "nonce",
	}
	return tx, Receipt{TxHash: tx.Hash, Status: ReceiptStatusSuccessful}
}

// TestNewBlockchainGenesis verifies that a new blockchain is correctly
// initialized with a sealed genesis block carrying the initial metadata.
func TestNewBlockchainGenesis(t *testing.T) {
	sealer := NewSealer()
	bc, err := NewBlockchain(sealer, Metadata{PlayersLeft: 4})
	if err != nil {
		t.Fatalf("failed to create blockchain: %v", err)
	}
	if bc.Len() != 1 {
		t.Fatalf("expected 1 block (genesis), got %d", bc.Len())
	}

	genesis := bc.blocks[0]
	if genesis.Index != 0 {
		t.Fatalf("genesis index should be 0, got %d", genesis.Index)
	}
	if genesis.PrevHash != "0" {
		t.Fatalf("genesis PrevHash should be '0', got %s", genesis.PrevHash)
	}
	if len(genesis.Txs) != 0 {
		t.Fatalf("genesis should have no transactions, got %d", len(genesis.Txs))
	}
	if genesis.Hash == "" {
		t.Fatal("genesis block should have a hash")
	}
	if genesis.Metadata.PlayersLeft != 4 {
		t.Fatalf("genesis should record 4 players left, got %d", genesis.Metadata.PlayersLeft)
	}
	if err := VerifySeal(sealer.Public(), genesis.Hash, genesis.Seal); err != nil {
		t.Fatalf("genesis seal does not verify: %v", err)
	}
}

// TestAppendValidBlock verifies that a valid block can be appended and is
// linked to its predecessor.
func TestAppendValidBlock(t *testing.T) {
	bc, err := NewBlockchain(NewSealer(), Metadata{PlayersLeft: 2})
	if err != nil {
		t.Fatalf("failed to create blockchain: %v", err)
	}
	tx, rc := testTx(1)
	block, err := bc.Append([]Tx{tx}, []Receipt{rc}, Metadata{PlayersLeft: 1})
	if err != nil {
		t.Fatalf("unexpected error appending valid block: %v", err)
	}
	if block.Index != 1 {
		t.Fatalf("new block index should be 1, got %d", block.Index)
	}
	if block.PrevHash != bc.blocks[0].Hash {
		t.Fatal("new block's PrevHash should match previous block's hash")
	}
	latest, err := bc.GetLatest()
	if err != nil {
		t.Fatal(err)
	}
	if latest.Hash != block.Hash {
		t.Fatal("GetLatest should return the appended block")
	}
	if err := bc.Verify(); err != nil {
		t.Fatalf("chain should verify: %v", err)
	}
}

// TestAppendMismatchedReceipts verifies that a block whose receipts do not
// match its transactions is rejected.
func TestAppendMismatchedReceipts(t *testing.T) {
	bc, err := NewBlockchain(nil, Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	tx, _ := testTx(1)
	_, other := testTx(2)
	if _, err := bc.Append([]Tx{tx}, nil, Metadata{}); err == nil {
		t.Fatal("expected an error for a missing receipt")
	}
	if _, err := bc.Append([]Tx{tx}, []Receipt{other}, Metadata{}); err == nil {
		t.Fatal("expected an error for a receipt of another transaction")
	}
	if bc.Len() != 1 {
		t.Fatalf("rejected blocks must not be stored, chain has %d blocks", bc.Len())
	}
}

// TestGetByIndexOutOfRange verifies bounds checking on block lookup.
func TestGetByIndexOutOfRange(t *testing.T) {
	bc, err := NewBlockchain(nil, Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bc.GetByIndex(-1); err == nil {
		t.Fatal("expected an error for index -1")
	}
	if _, err := bc.GetByIndex(1); err == nil {
		t.Fatal("expected an error for index 1")
	}
	if _, err := bc.GetByIndex(0); err != nil {
		t.Fatalf("genesis lookup failed: %v", err)
	}
}

// TestVerifyDetectsTampering verifies that modifying a stored transaction
// breaks the hash chain.
func TestVerifyDetectsTampering(t *testing.T) {
	bc, err := NewBlockchain(nil, Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	for i := byte(1); i <= 3; i++ {
		tx, rc := testTx(i)
		if _, err := bc.Append([]Tx{tx}, []Receipt{rc}, Metadata{}); err != nil {
			t.Fatal(err)
		}
	}
	bc.blocks[2].Txs[0].From = common.BytesToAddress([]byte{0xff})
	if err := bc.Verify(); err == nil {
		t.Fatal("expected verification to fail after tampering")
	}
}

// TestVerifyDetectsForgedSeal verifies that a block sealed by another key is
// rejected even when its hash is consistent.
func TestVerifyDetectsForgedSeal(t *testing.T) {
	bc, err := NewBlockchain(NewSealer(), Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	tx, rc := testTx(1)
	if _, err := bc.Append([]Tx{tx}, []Receipt{rc}, Metadata{}); err != nil {
		t.Fatal(err)
	}
	forged, err := NewSealer().Seal(bc.blocks[1].Hash)
	if err != nil {
		t.Fatal(err)
	}
	bc.blocks[1].Seal = forged
	if err := bc.Verify(); err == nil {
		t.Fatal("expected verification to fail with a forged seal")
	}
}
