package ledger

import (
	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"
	"go.dedis.ch/kyber/v4/util/key"
)

var suite suites.Suite = suites.MustFind("Ed25519")

// Sealer signs block hashes on behalf of the sequencer.
type Sealer struct {
	pair *key.Pair
}

func NewSealer() *Sealer {
	return &Sealer{pair: key.NewKeyPair(suite)}
}

// Public returns the key seals are checked against.
func (s *Sealer) Public() kyber.Point {
	return s.pair.Public
}

func (s *Sealer) ID() string {
	return s.pair.Public.String()
}

func (s *Sealer) Seal(hash string) ([]byte, error) {
	return schnorr.Sign(suite, s.pair.Private, []byte(hash))
}

// VerifySeal checks that seal is a valid signature of hash under pub.
func VerifySeal(pub kyber.Point, hash string, seal []byte) error {
	return schnorr.Verify(suite, pub, []byte(hash), seal)
}
