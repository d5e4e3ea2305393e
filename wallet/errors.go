package wallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrWalletUnavailable = errors.New("wallet unavailable")
	ErrUserRejected      = errors.New("user rejected the request")
)

// EIP-1193 provider error codes, plus the JSON-RPC method-not-found code.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeMethodNotFound    = -32601
)

// ProviderError is a JSON-RPC style error. It satisfies rpc.Error.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

func (e *ProviderError) ErrorCode() int { return e.Code }

// classify maps provider error codes onto the package sentinels.
// Errors without a code are returned unchanged.
func classify(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	switch rpcErr.ErrorCode() {
	case CodeUserRejected, CodeUnauthorized:
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	case CodeUnsupportedMethod, CodeMethodNotFound:
		return fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return err
}
