// Package account holds signing keys: the master account read from the
// environment and burner accounts derived from a mnemonic.
//
// Burner i's key is HKDF-SHA256 over the mnemonic seed with info
// "rlchess/burner/<i>", so the same mnemonic always yields the same burners.
// The mnemonic is persisted only inside a passphrase-sealed keystore file.
package account
