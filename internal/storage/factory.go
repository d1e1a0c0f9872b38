package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/storage/badger"
)

// NewStorageManager creates a new storage manager based on config.
// Badger is the only backing store; runs live in memory unless the
// configuration asks for an on-disk database.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &config.Storage.Badger)
}
