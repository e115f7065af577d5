package config

import (
	"fmt"
	"os"

	"github.com/gnosisguild/enclave-sub005/pkg/store"
	"github.com/gnosisguild/enclave-sub005/pkg/store/badgerstore"
	"github.com/gnosisguild/enclave-sub005/pkg/store/boltstore"
	"github.com/gnosisguild/enclave-sub005/pkg/store/memstore"
)

func openStore(c *Config) (store.Store, error) {
	switch c.storageEngine {
	case StorageEngineBolt:
		if err := os.MkdirAll(c.DBFolder(), 0o740); err != nil {
			return nil, err
		}
		return boltstore.Open(c.DBFolder(), c.logger, c.boltOpts)
	case StorageEngineBadger:
		if err := os.MkdirAll(c.DBFolder(), 0o740); err != nil {
			return nil, err
		}
		return badgerstore.Open(c.DBFolder(), nil)
	case StorageEngineMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("config: unknown storage engine %q", c.storageEngine)
	}
}
