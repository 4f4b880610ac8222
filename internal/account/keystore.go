package account

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const keystoreVersion = 1

// ErrWrongPassphrase is returned when a keystore cannot be opened.
var ErrWrongPassphrase = errors.New("keystore: wrong passphrase or corrupted file")

// KDFParams are argon2id cost parameters.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultKDF is used by Save.
var DefaultKDF = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// Keystore is the decrypted content of a keystore file.
type Keystore struct {
	Mnemonic string
	Burners  []Burner
	Active   string
}

type keystoreFile struct {
	Version    int       `json:"version"`
	KDF        KDFParams `json:"kdf"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
	Burners    []Burner  `json:"burners"`
	Active     string    `json:"active,omitempty"`
}

// Save seals the mnemonic with passphrase and writes the keystore to path
// with 0600 permissions. Burner addresses are stored in the clear.
func (k Keystore) Save(path, passphrase string) error {
	return k.SaveWithParams(path, passphrase, DefaultKDF)
}

// SaveWithParams is Save with explicit KDF costs.
func (k Keystore) SaveWithParams(path, passphrase string, p KDFParams) error {
	if passphrase == "" {
		return fmt.Errorf("keystore: empty passphrase")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keystore: salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt, p))
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("keystore: nonce: %w", err)
	}

	f := keystoreFile{
		Version:    keystoreVersion,
		KDF:        p,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, []byte(k.Mnemonic), []byte("rlchess/keystore/v1")),
		Burners:    k.Burners,
		Active:     k.Active,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	return nil
}

// LoadKeystore opens the keystore at path.
func LoadKeystore(path, passphrase string) (Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keystore{}, fmt.Errorf("keystore: %w", err)
	}
	var f keystoreFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Keystore{}, fmt.Errorf("keystore: parse %s: %w", path, err)
	}
	if f.Version != keystoreVersion {
		return Keystore{}, fmt.Errorf("keystore: unsupported version %d", f.Version)
	}

	if f.KDF.Time == 0 || f.KDF.Memory == 0 || f.KDF.Threads == 0 {
		return Keystore{}, fmt.Errorf("keystore: invalid kdf parameters")
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, f.Salt, f.KDF))
	if err != nil {
		return Keystore{}, fmt.Errorf("keystore: %w", err)
	}
	if len(f.Nonce) != chacha20poly1305.NonceSizeX {
		return Keystore{}, ErrWrongPassphrase
	}
	plain, err := aead.Open(nil, f.Nonce, f.Ciphertext, []byte("rlchess/keystore/v1"))
	if err != nil {
		return Keystore{}, ErrWrongPassphrase
	}
	return Keystore{Mnemonic: string(plain), Burners: f.Burners, Active: f.Active}, nil
}

func deriveKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.Memory, p.Threads, chacha20poly1305.KeySize)
}
