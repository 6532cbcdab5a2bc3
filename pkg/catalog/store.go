package catalog

import "context"

// Store is the persistence surface the presentation layer talks to.
type Store interface {
	LoadConfig(ctx context.Context) (*Config, error)
	SaveConfig(ctx context.Context, cfg *Config) error
}

// VaultStore serves the connection list straight from the vault.
type VaultStore struct {
	loader *Loader
}

var _ Store = (*VaultStore)(nil)

// NewVaultStore returns a Store backed by loader.
func NewVaultStore(loader *Loader) *VaultStore {
	return &VaultStore{loader: loader}
}

// LoadConfig loads the current connection list.
func (s *VaultStore) LoadConfig(ctx context.Context) (*Config, error) {
	conns, err := s.loader.Load(ctx)
	if err != nil {
		return &Config{Connections: []Connection{}}, err
	}
	return &Config{Connections: conns}, nil
}

// SaveConfig does nothing. The vault is the source of truth and edits are
// made there, so there is no local copy to write.
func (s *VaultStore) SaveConfig(_ context.Context, _ *Config) error {
	return nil
}
