// Package ledger implements an in-process registration contract running on a
// hash-chained block log. It stands in for a remote chain when the client runs
// in simulated mode and in tests.
//
// # Core Components
//
// Blockchain: An append-only log of blocks with SHA256 hash chaining for
// tamper detection. When a Sealer is configured every block also carries a
// Schnorr seal over its hash.
//
// Block: A batch of registration transactions and their receipts, linked to
// the previous block.
//
// Registry: The registration contract. It holds a fixed number of seats,
// accepts signed registration transactions into a pending pool and executes
// them when a block is mined.
//
// # Transaction Lifecycle
//
// Submit checks the signature and rejects calls that would revert at call
// time (session full, already registered). Accepted transactions stay pending
// until Mine, which executes them in submission order; a transaction that no
// longer fits when executed gets a failed receipt. WaitReceipt blocks until a
// transaction is mined.
//
// # Security Properties
//
// The blockchain provides:
//   - Immutability: Once recorded, blocks cannot be modified
//   - Verifiability: Anyone can verify the integrity of the entire chain
//   - Tamper detection: Any modification breaks the hash chain or a seal
package ledger
