// Package wallet obtains signing identities from an injected wallet capability.
//
// # Core Components
//
// Provider: The wallet capability itself, an EIP-1193 style request
// function. A *rpc.Client from go-ethereum satisfies it, and so does
// KeyedProvider. A nil Provider models a host without any wallet.
//
// Gateway: Asks the provider to authorize an account and returns an
// Identity bound to it.
//
// Identity: A Signer that routes transactions and message signatures
// through the provider, so that the wallet keeps the key.
//
// KeyedProvider: An in-process wallet holding a secp256k1 key, used by the
// terminal client and by simulated players.
//
// # Errors
//
// ErrWalletUnavailable is returned when no capability is present or the
// provider does not implement the requested method. ErrUserRejected is
// returned when the user declines a prompt (JSON-RPC code 4001).
// No call is retried; the caller decides whether to prompt again.
package wallet
