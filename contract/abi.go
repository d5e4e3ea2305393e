package contract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	DefaultCapacityMethod = "getPlayersLeftToRegister"
	DefaultRegisterMethod = "registerForGame"
)

// RegistrationABI describes the two methods of the registration contract used
// by this client.
const RegistrationABI = `[
	{
		"type": "function",
		"name": "getPlayersLeftToRegister",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "registerForGame",
		"inputs": [],
		"outputs": [],
		"stateMutability": "nonpayable"
	}
]`

func DefaultABI() (abi.ABI, error) {
	return ParseABI(strings.NewReader(RegistrationABI))
}

func ParseABI(r io.Reader) (abi.ABI, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

// LoadABI reads an ABI JSON file. An empty path yields DefaultABI.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return DefaultABI()
	}
	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, err
	}
	defer f.Close()
	return ParseABI(f)
}
