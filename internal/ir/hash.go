package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainEntity  = "rlchess/entity/v1"
	DomainTx      = "rlchess/tx/v1"
	DomainAccount = "rlchess/account/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator keeps domain and data boundaries unambiguous.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// EntityID derives the local entity identifier for a set of key values.
//
// Every key is reduced to its canonical felt first, so IRInt(3), "3" and
// "0x03" name the same entity. The result is "0x" followed by 64 hex digits.
// At least one key is required.
func EntityID(keys ...IRValue) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("EntityID: no keys")
	}

	felts := make(IRArray, len(keys))
	for i, k := range keys {
		f, err := Felt(k)
		if err != nil {
			return "", fmt.Errorf("EntityID: key %d: %w", i, err)
		}
		felts[i] = f
	}

	canonical, err := MarshalCanonical(felts)
	if err != nil {
		return "", fmt.Errorf("EntityID: failed to marshal: %w", err)
	}
	return "0x" + hex.EncodeToString(hashWithDomain(DomainEntity, canonical)), nil
}

// MustEntityID is like EntityID but panics on error.
// Use only in tests or when keys are known to be valid.
func MustEntityID(keys ...IRValue) string {
	id, err := EntityID(keys...)
	if err != nil {
		panic(err)
	}
	return id
}

// TxDigest computes the 32-byte digest a signer signs for an invoke
// transaction. The payload is the canonical form of the transaction fields.
func TxDigest(payload IRObject) ([]byte, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return nil, fmt.Errorf("TxDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTx, canonical), nil
}

// accountMask keeps addresses below 2^251, inside the felt field.
var accountMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 251), big.NewInt(1))

// AccountAddress derives the counterfactual address of an account contract
// from its class hash, public key and salt.
func AccountAddress(classHash, publicKey, salt string) (string, error) {
	obj := IRObject{
		"class_hash": IRString(NormalizeFelt(classHash)),
		"public_key": IRString(publicKey),
		"salt":       IRString(NormalizeFelt(salt)),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("AccountAddress: failed to marshal: %w", err)
	}
	n := new(big.Int).SetBytes(hashWithDomain(DomainAccount, canonical))
	return FeltHex(n.And(n, accountMask)), nil
}
