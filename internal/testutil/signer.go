package testutil

import (
	"crypto/sha256"
	"sync/atomic"
)

// StubSigner signs with a deterministic fake signature.
// Set Err to make every Sign fail; set Panic to make it panic.
type StubSigner struct {
	Addr  string
	Err   error
	Panic bool

	signed atomic.Int64
}

// Address returns Addr.
func (s *StubSigner) Address() string { return s.Addr }

// Sign returns SHA-256(digest) padded to the 65-byte [R || S || V] layout.
func (s *StubSigner) Sign(digest []byte) ([]byte, error) {
	if s.Panic {
		panic("stub signer: forced panic")
	}
	if s.Err != nil {
		return nil, s.Err
	}
	s.signed.Add(1)
	h := sha256.Sum256(digest)
	sig := make([]byte, 65)
	copy(sig, h[:])
	copy(sig[32:], h[:])
	sig[64] = 1
	return sig, nil
}

// Signed returns how many digests were signed.
func (s *StubSigner) Signed() int64 { return s.signed.Load() }
