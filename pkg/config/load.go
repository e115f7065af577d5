package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML file shape. Like the teacher's TOML loaders it is
// a separate intermediate struct: the file never decodes straight into
// Config, it produces options applied on top of the defaults.
type fileConfig struct {
	Folder         string          `toml:"folder"`
	ListenAddress  string          `toml:"listen_address"`
	ControlPort    string          `toml:"control_port"`
	StorageEngine  string          `toml:"storage_engine"`
	DKGTimeout     string          `toml:"dkg_timeout"`
	BootstrapPeers []string        `toml:"bootstrap_peers"`
	Chains         []ChainEndpoint `toml:"chains"`
}

// Load reads a TOML config file and returns a Config with the file's
// settings applied over the defaults, then extra opts applied last so
// CLI flags can override the file.
func Load(path string, extra ...ConfigOption) (*Config, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var opts []ConfigOption
	if fc.Folder != "" {
		opts = append(opts, WithConfigFolder(fc.Folder))
	}
	if fc.ListenAddress != "" {
		opts = append(opts, WithListenAddress(fc.ListenAddress))
	}
	if fc.ControlPort != "" {
		opts = append(opts, WithControlPort(fc.ControlPort))
	}
	if fc.StorageEngine != "" {
		switch t := StorageType(fc.StorageEngine); t {
		case StorageEngineBolt, StorageEngineBadger, StorageEngineMemory:
			opts = append(opts, WithStorageEngine(t))
		default:
			return nil, fmt.Errorf("config: unknown storage engine %q", fc.StorageEngine)
		}
	}
	if fc.DKGTimeout != "" {
		d, err := time.ParseDuration(fc.DKGTimeout)
		if err != nil {
			return nil, fmt.Errorf("config: bad dkg_timeout: %w", err)
		}
		opts = append(opts, WithDKGTimeout(d))
	}
	if len(fc.BootstrapPeers) > 0 {
		opts = append(opts, WithBootstrapPeers(fc.BootstrapPeers...))
	}
	if len(fc.Chains) > 0 {
		opts = append(opts, WithChains(fc.Chains...))
	}

	return NewConfig(append(opts, extra...)...), nil
}
