package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/rlchess/internal/account"
	"github.com/roach88/rlchess/internal/config"
	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/manifest"
	"github.com/roach88/rlchess/internal/store"
)

// env is the per-invocation runtime: configuration, the local store and,
// on demand, the chain client.
type env struct {
	cfg   config.Config
	store *store.Store

	manifest *manifest.Manifest
	exec     *contract.Client
}

// openEnv loads configuration and opens the local store.
func openEnv(opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if dir := filepath.Dir(cfg.StorePath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create store directory", err)
		}
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return &env{cfg: cfg, store: st}, nil
}

func (e *env) Close() {
	if e.exec != nil {
		e.exec.Close()
	}
	e.store.Close()
}

// loadManifest reads the configured manifest once.
func (e *env) loadManifest() (*manifest.Manifest, error) {
	if e.manifest != nil {
		return e.manifest, nil
	}
	m, err := manifest.Load(e.cfg.ManifestPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	e.manifest = m
	return m, nil
}

// chain dials the node once.
func (e *env) chain(ctx context.Context) (*contract.Client, error) {
	if e.exec != nil {
		return e.exec, nil
	}
	if err := e.cfg.RequireChain(); err != nil {
		return nil, WrapExitError(ExitCommandError, "incomplete config", err)
	}
	m, err := e.loadManifest()
	if err != nil {
		return nil, err
	}
	opts := []contract.Option{
		contract.WithNamespace(e.cfg.Namespace),
		contract.WithRetryInterval(e.cfg.RetryInterval),
	}
	if e.cfg.ChainID != "" {
		opts = append(opts, contract.WithChainID(e.cfg.ChainID))
	}
	c, err := contract.Dial(ctx, e.cfg.RPCURL, m, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to dial node", err)
	}
	e.exec = c
	return c, nil
}

// master returns the configured master account, or nil when no key is set.
func (e *env) master() (*account.KeySigner, error) {
	if e.cfg.MasterPrivateKey == "" {
		return nil, nil
	}
	if e.cfg.MasterAddress == "" {
		return nil, NewExitError(ExitCommandError, "master_address is required with a master private key")
	}
	s, err := account.KeySignerFromHex(e.cfg.MasterAddress, e.cfg.MasterPrivateKey)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid master key", err)
	}
	return s, nil
}

// keystore loads the burner keystore. ok is false when none exists yet.
func (e *env) keystore() (ks account.Keystore, ok bool, err error) {
	if _, err := os.Stat(e.cfg.KeystorePath); errors.Is(err, os.ErrNotExist) {
		return account.Keystore{}, false, nil
	}
	if e.cfg.KeystorePassphrase == "" {
		return account.Keystore{}, false, NewExitError(ExitCommandError, "keystore passphrase not set (RLCHESS_KEYSTORE_PASSPHRASE)")
	}
	ks, err = account.LoadKeystore(e.cfg.KeystorePath, e.cfg.KeystorePassphrase)
	if err != nil {
		return account.Keystore{}, false, WrapExitError(ExitCommandError, "failed to open keystore", err)
	}
	return ks, true, nil
}

// manager builds a burner manager over the keystore contents.
func (e *env) manager(ctx context.Context, ks account.Keystore, withChain bool) (*account.Manager, error) {
	master, err := e.master()
	if err != nil {
		return nil, err
	}
	var deployer account.Deployer
	if withChain {
		if master == nil {
			return nil, NewExitError(ExitCommandError, "a master account is required (RLCHESS_MASTER_PRIVATE_KEY)")
		}
		exec, err := e.chain(ctx)
		if err != nil {
			return nil, err
		}
		deployer = exec
	}
	var masterSigner contract.Signer
	if master != nil {
		masterSigner = master
	}
	m, err := account.NewManager(masterSigner, deployer, e.cfg.AccountClassHash, ks.Mnemonic, ks.Burners)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid keystore", err)
	}
	if ks.Active != "" {
		if _, err := m.Select(ks.Active); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid keystore", err)
		}
	}
	return m, nil
}

// signer picks the account that signs actions: the burner at as, "master",
// the active burner, or the master account when no keystore exists.
func (e *env) signer(ctx context.Context, as string) (contract.Signer, error) {
	if as != "master" {
		ks, ok, err := e.keystore()
		if err != nil {
			return nil, err
		}
		if ok {
			m, err := e.manager(ctx, ks, false)
			if err != nil {
				return nil, err
			}
			addr := as
			if addr == "" {
				addr = m.Active()
			}
			if addr != "" {
				s, err := m.Signer(addr)
				if err != nil {
					return nil, WrapExitError(ExitCommandError, "unknown account", err)
				}
				return s, nil
			}
		} else if as != "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("no keystore to find account %s in", as))
		}
	}

	master, err := e.master()
	if err != nil {
		return nil, err
	}
	if master == nil {
		return nil, NewExitError(ExitCommandError, "no account: create a burner (rlchess account new) or set RLCHESS_MASTER_PRIVATE_KEY")
	}
	return master, nil
}
