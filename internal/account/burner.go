package account

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/ir"
)

// DefaultAccountClassHash is the class hash of the burner account contract.
const DefaultAccountClassHash = "0x5400e90f7e0ae78bd02c77cd75527280470e2fe19c54970dd79dc37a9d3645c"

const burnerInfoPrefix = "rlchess/burner/"

// Deployer deploys contracts and waits for their receipts.
// *contract.Client implements it.
type Deployer interface {
	Deploy(ctx context.Context, signer contract.Signer, classHash, salt string, constructorCalldata []string) (string, error)
	WaitForTransaction(ctx context.Context, hash string) (*contract.Receipt, error)
}

// Burner is a derived, disposable account.
type Burner struct {
	Index     int    `json:"index"`
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	TxHash    string `json:"deploy_tx,omitempty"`
}

// NewMnemonic returns a fresh 12-word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("new mnemonic: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// Manager derives, deploys and tracks burners funded by a master account.
type Manager struct {
	master    contract.Signer
	deployer  Deployer
	classHash string
	seed      []byte

	mu      sync.Mutex
	burners []Burner
	active  string
}

// NewManager creates a manager over mnemonic. burners are previously
// created accounts, typically loaded from a keystore.
func NewManager(master contract.Signer, deployer Deployer, classHash, mnemonic string, burners []Burner) (*Manager, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("burner manager: %w", err)
	}
	if classHash == "" {
		classHash = DefaultAccountClassHash
	}
	return &Manager{
		master:    master,
		deployer:  deployer,
		classHash: ir.NormalizeFelt(classHash),
		seed:      seed,
		burners:   append([]Burner(nil), burners...),
	}, nil
}

// DeriveKey returns the private key of burner i.
func (m *Manager) DeriveKey(i int) (*ecdsa.PrivateKey, error) {
	r := hkdf.New(sha256.New, m.seed, nil, []byte(burnerInfoPrefix+strconv.Itoa(i)))
	buf := make([]byte, 32)
	// Out-of-range keys are skipped by reading further output.
	for attempt := 0; attempt < 8; attempt++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("derive burner %d: %w", i, err)
		}
		if key, err := crypto.ToECDSA(buf); err == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("derive burner %d: no valid key", i)
}

// Derive returns burner i with its counterfactual address, without deploying.
func (m *Manager) Derive(i int) (Burner, *KeySigner, error) {
	key, err := m.DeriveKey(i)
	if err != nil {
		return Burner{}, nil, err
	}
	pub := PublicKeyFelt(&key.PublicKey)
	addr, err := ir.AccountAddress(m.classHash, pub, pub)
	if err != nil {
		return Burner{}, nil, fmt.Errorf("derive burner %d: %w", i, err)
	}
	signer, err := NewKeySigner(addr, key)
	if err != nil {
		return Burner{}, nil, err
	}
	return Burner{Index: i, Address: addr, PublicKey: pub}, signer, nil
}

// Create derives the next burner, deploys it from the master account and
// makes it active.
func (m *Manager) Create(ctx context.Context) (Burner, error) {
	m.mu.Lock()
	next := len(m.burners)
	m.mu.Unlock()

	b, _, err := m.Derive(next)
	if err != nil {
		return Burner{}, err
	}

	// Salt is the public key, matching the address derivation above.
	hash, err := m.deployer.Deploy(ctx, m.master, m.classHash, b.PublicKey, []string{b.PublicKey})
	if err != nil {
		return Burner{}, fmt.Errorf("deploy burner %d: %w", next, err)
	}
	if _, err := m.deployer.WaitForTransaction(ctx, hash); err != nil {
		return Burner{}, fmt.Errorf("deploy burner %d: %w", next, err)
	}
	b.TxHash = hash

	m.mu.Lock()
	defer m.mu.Unlock()
	m.burners = append(m.burners, b)
	m.active = b.Address
	slog.Info("burner created", "index", b.Index, "address", b.Address, "tx", hash)
	return b, nil
}

// List returns the known burners in creation order.
func (m *Manager) List() []Burner {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Burner(nil), m.burners...)
}

// Select makes the burner at address active.
func (m *Manager) Select(address string) (Burner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := ir.NormalizeFelt(address)
	for _, b := range m.burners {
		if b.Address == want {
			m.active = b.Address
			return b, nil
		}
	}
	return Burner{}, fmt.Errorf("no burner with address %s", address)
}

// Active returns the active burner address, or "" when none is selected.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Signer returns a signer for the known burner at address.
func (m *Manager) Signer(address string) (*KeySigner, error) {
	m.mu.Lock()
	want := ir.NormalizeFelt(address)
	index := -1
	for _, b := range m.burners {
		if b.Address == want {
			index = b.Index
			break
		}
	}
	m.mu.Unlock()

	if index < 0 {
		return nil, fmt.Errorf("no burner with address %s", address)
	}
	_, signer, err := m.Derive(index)
	return signer, err
}

// Clear forgets every burner.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.burners = nil
	m.active = ""
}
