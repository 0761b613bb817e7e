package custgorm

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector
// for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

// Register adds a storage provider to the registry.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

// Open connects to the named provider, migrates the schema unless told not
// to, and returns the repository.
func Open(name, dsn string, config *gorm.Config, skipMigrate bool) (*Repository, error) {
	registryMu.RLock()
	opener, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("custgorm: unknown storage provider %q", name)
	}
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(opener(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("custgorm: open %s: %w", name, err)
	}

	repo := NewRepository(db)
	if !skipMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("custgorm: migrate: %w", err)
		}
	}
	return repo, nil
}
