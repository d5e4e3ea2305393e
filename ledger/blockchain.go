package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Blockchain struct {
	mu     sync.RWMutex
	blocks []Block
	sealer *Sealer
}

// NewBlockchain creates a new blockchain with an initialized genesis block.
// The genesis block has index 0, previous hash "0" and no transactions.
// sealer may be nil, in which case blocks are not sealed.
func NewBlockchain(sealer *Sealer, meta Metadata) (*Blockchain, error) {
	bc := &Blockchain{
		blocks: make([]Block, 0),
		sealer: sealer,
	}

	genesis := Block{
		Index:     0,
		Timestamp: time.Now().UnixNano(),
		PrevHash:  "0",
		Txs:       []Tx{},
		Receipts:  []Receipt{},
		Metadata:  meta,
	}
	genesis.Hash = calculateHash(genesis)
	if err := bc.seal(&genesis); err != nil {
		return nil, err
	}
	bc.blocks = append(bc.blocks, genesis)

	return bc, nil
}

// Append adds a new block holding txs and their receipts. It calculates the
// block hash, seals it, validates it against the previous block and appends
// it. Returns the stored block.
func (bc *Blockchain) Append(txs []Tx, receipts []Receipt, meta Metadata) (Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(txs) != len(receipts) {
		return Block{}, fmt.Errorf("invalid block: %d transactions but %d receipts", len(txs), len(receipts))
	}
	latest := bc.blocks[len(bc.blocks)-1]

	newBlock := Block{
		Index:     latest.Index + 1,
		Timestamp: time.Now().UnixNano(),
		PrevHash:  latest.Hash,
		Txs:       txs,
		Receipts:  receipts,
		Metadata:  meta,
	}
	newBlock.Hash = calculateHash(newBlock)
	if err := bc.seal(&newBlock); err != nil {
		return Block{}, err
	}

	if err := bc.validateBlock(newBlock, latest); err != nil {
		return Block{}, fmt.Errorf("invalid block: %w", err)
	}

	bc.blocks = append(bc.blocks, newBlock)

	return newBlock, nil
}

// GetLatest returns the most recently added block in the blockchain.
func (bc *Blockchain) GetLatest() (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return Block{}, fmt.Errorf("blockchain is empty")
	}

	return bc.blocks[len(bc.blocks)-1], nil
}

// GetByIndex retrieves a block by its index in the chain. Returns an error if
// the index is out of range.
func (bc *Blockchain) GetByIndex(index int) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index < 0 || index >= len(bc.blocks) {
		return Block{}, fmt.Errorf("index out of range")
	}

	return bc.blocks[index], nil
}

func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// Verify validates the integrity of the entire blockchain by checking the
// genesis block and verifying each subsequent block's hash, index continuity,
// previous hash linkage and seal.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return fmt.Errorf("empty blockchain")
	}

	genesis := bc.blocks[0]
	if genesis.PrevHash != "0" || genesis.Index != 0 {
		return fmt.Errorf("invalid genesis block")
	}
	if genesis.Hash != calculateHash(genesis) {
		return fmt.Errorf("invalid genesis hash")
	}
	if err := bc.verifySeal(genesis); err != nil {
		return fmt.Errorf("block 0 invalid: %w", err)
	}

	for i := 1; i < len(bc.blocks); i++ {
		if err := bc.validateBlock(bc.blocks[i], bc.blocks[i-1]); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
	}

	return nil
}

// validateBlock verifies that a block is valid relative to the previous
// block: index continuity, previous hash linkage, hash validity, one receipt
// per transaction and, when sealing is enabled, the seal.
func (bc *Blockchain) validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}

	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
	}

	expectedHash := calculateHash(current)
	if current.Hash != expectedHash {
		return fmt.Errorf("invalid hash: expected %s, got %s", expectedHash, current.Hash)
	}

	if len(current.Txs) != len(current.Receipts) {
		return fmt.Errorf("%d transactions but %d receipts", len(current.Txs), len(current.Receipts))
	}
	for i, tx := range current.Txs {
		if current.Receipts[i].TxHash != tx.Hash {
			return fmt.Errorf("receipt %d does not match transaction %s", i, tx.Hash.Hex())
		}
	}

	return bc.verifySeal(current)
}

func (bc *Blockchain) seal(b *Block) error {
	if bc.sealer == nil {
		return nil
	}
	s, err := bc.sealer.Seal(b.Hash)
	if err != nil {
		return fmt.Errorf("seal block %d: %w", b.Index, err)
	}
	b.Seal = s
	return nil
}

func (bc *Blockchain) verifySeal(b Block) error {
	if bc.sealer == nil {
		return nil
	}
	if err := VerifySeal(bc.sealer.Public(), b.Hash, b.Seal); err != nil {
		return fmt.Errorf("invalid seal: %w", err)
	}
	return nil
}

// calculateHash computes the SHA256 hash of a block based on its index,
// timestamp, previous hash, transactions, receipts and metadata. The seal is
// not part of the hash.
func calculateHash(block Block) string {
	txsBytes, _ := json.Marshal(block.Txs)
	receiptsBytes, _ := json.Marshal(block.Receipts)
	metaBytes, _ := json.Marshal(block.Metadata)

	data := fmt.Sprintf("%d%d%s%s%s%s",
		block.Index,
		block.Timestamp,
		block.PrevHash,
		string(txsBytes),
		string(receiptsBytes),
		string(metaBytes),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
