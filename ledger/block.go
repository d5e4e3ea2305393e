package ledger

import (
	"github.com/ethereum/go-ethereum/common"
)

// Block is one entry of the registration chain.
type Block struct {
	Index     int       `json:"index"`
	Timestamp int64     `json:"timestamp"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
	Txs       []Tx      `json:"txs"`
	Receipts  []Receipt `json:"receipts"`
	Metadata  Metadata  `json:"metadata"`
	Seal      []byte    `json:"seal,omitempty"`
}

type Metadata struct {
	Sequencer   string            `json:"sequencer"`
	PlayersLeft int               `json:"players_left"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Tx is a signed registration request.
type Tx struct {
	Hash      common.Hash    `json:"hash"`
	From      common.Address `json:"from"`
	Method    string         `json:"method"`
	Nonce     string         `json:"nonce"`
	Signature []byte         `json:"sig"`
}

const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)

// Receipt is the outcome of executing a Tx.
type Receipt struct {
	TxHash     common.Hash `json:"tx_hash"`
	BlockIndex int         `json:"block_index"`
	Status     uint64      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
}
