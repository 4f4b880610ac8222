package account

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/rlchess/internal/ir"
)

// KeySigner signs transaction digests with a secp256k1 key.
type KeySigner struct {
	address string
	key     *ecdsa.PrivateKey
}

// NewKeySigner binds a private key to an account address.
func NewKeySigner(address string, key *ecdsa.PrivateKey) (*KeySigner, error) {
	if !ir.IsFelt(address) {
		return nil, fmt.Errorf("account address %q is not a felt", address)
	}
	if key == nil {
		return nil, fmt.Errorf("account %s: nil key", address)
	}
	return &KeySigner{address: ir.NormalizeFelt(address), key: key}, nil
}

// KeySignerFromHex parses a hex private key, with or without 0x.
func KeySignerFromHex(address, privateKey string) (*KeySigner, error) {
	raw, err := hex.DecodeString(leftPadHex(strings.TrimPrefix(strings.TrimPrefix(privateKey, "0x"), "0X")))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeySigner(address, key)
}

func leftPadHex(s string) string {
	if len(s) < 64 {
		return strings.Repeat("0", 64-len(s)) + s
	}
	return s
}

// Address returns the account address.
func (s *KeySigner) Address() string { return s.address }

// Sign returns a 65-byte [R || S || V] signature over a 32-byte digest.
func (s *KeySigner) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("sign: digest must be 32 bytes, got %d", len(digest))
	}
	return crypto.Sign(digest, s.key)
}

// PublicKey returns the public key as a felt.
func (s *KeySigner) PublicKey() string {
	return PublicKeyFelt(&s.key.PublicKey)
}

// PrivateKeyHex returns the private key as 0x-prefixed hex.
func (s *KeySigner) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(crypto.FromECDSA(s.key))
}

// PublicKeyFelt reduces the public key's X coordinate into the felt field.
func PublicKeyFelt(pub *ecdsa.PublicKey) string {
	return ir.FeltHex(new(big.Int).Mod(pub.X, ir.FeltPrime))
}

// Verify reports whether sig is a valid signature by address's key over digest.
func Verify(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	return crypto.VerifySignature(crypto.CompressPubkey(pub), digest, sig[:64])
}
