// Package config holds per-node runtime configuration: data folder, listen
// addresses, control port, chain RPC endpoints, libp2p bootstrap peers, and
// DKG timeout. It generalizes the teacher's functional-options Config
// (core/config.go) from a single-beacon process to a multi-chain node.
package config

import (
	"path"
	"time"

	clock "github.com/jonboulle/clockwork"
	bolt "go.etcd.io/bbolt"
	"google.golang.org/grpc"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

const (
	// DefaultConfigFolderName is the directory name under the user's home
	// folder holding all of a node's key material and data.
	DefaultConfigFolderName = ".enclave"

	// DefaultDBFolder is the name of the subfolder holding the event log
	// and repository backends, relative to ConfigFolder.
	DefaultDBFolder = "db"

	// DefaultControlPort is the default port for local control-surface
	// communication (process supervisor, password/wallet/net subcommands).
	DefaultControlPort = "9090"

	// DefaultDKGTimeout is the default deadline the node watchdog gives each
	// ceremony stage it tracks: key aggregation after CommitteeFinalized
	// (failed as KeyPublished/InsufficientCommitteeMembers) and plaintext
	// after CiphertextOutputPublished (failed as DecryptionTimeout).
	DefaultDKGTimeout = 5 * time.Minute

	// DefaultStorageEngine names the store.Store backend used when none is
	// configured explicitly.
	DefaultStorageEngine = StorageEngineBolt
)

// StorageType names the pluggable store.Store backend a Config selects.
type StorageType string

const (
	StorageEngineBolt   StorageType = "bolt"
	StorageEngineBadger StorageType = "badger"
	StorageEngineMemory StorageType = "memory"
)

// ChainEndpoint names one EVM chain a node reads registry/ceremony events
// from and writes outputs back to.
type ChainEndpoint struct {
	ChainID uint64 `toml:"chain_id"`
	RPCURL  string `toml:"rpc_url"`
	WSURL   string `toml:"ws_url"`
}

// ConfigOption applies one setting to a Config, following the teacher's
// functional-options convention (core/config.go).
type ConfigOption func(*Config)

// Config holds everything a node needs to construct its stores, bus,
// sequencer, sortition registry, adapters, and control surface.
type Config struct {
	configFolder  string
	listenAddr    string
	controlPort   string
	storageEngine StorageType
	boltOpts      *bolt.Options
	dkgTimeout    time.Duration
	chains        []ChainEndpoint
	bootstrapPeers []string
	grpcOpts      []grpc.DialOption
	logger        elog.Logger
	clock         clock.Clock
}

// NewConfig returns a Config with teacher-style defaults applied, then
// overridden by opts in order.
func NewConfig(opts ...ConfigOption) *Config {
	c := &Config{
		configFolder:  DefaultConfigFolder(),
		controlPort:   DefaultControlPort,
		storageEngine: DefaultStorageEngine,
		dkgTimeout:    DefaultDKGTimeout,
		logger:        elog.DefaultLogger(),
		clock:         clock.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultConfigFolder returns DefaultConfigFolderName under the current
// user's home directory.
func DefaultConfigFolder() string {
	return path.Join(homeFolder(), DefaultConfigFolderName)
}

func (c *Config) ConfigFolder() string { return c.configFolder }

// DBFolder returns the folder under which store backends persist data.
func (c *Config) DBFolder() string {
	return path.Join(c.configFolder, DefaultDBFolder)
}

func (c *Config) ListenAddress(defaultAddr string) string {
	if c.listenAddr != "" {
		return c.listenAddr
	}
	return defaultAddr
}

func (c *Config) ControlPort() string { return c.controlPort }

func (c *Config) StorageEngine() StorageType { return c.storageEngine }

func (c *Config) BoltOptions() *bolt.Options { return c.boltOpts }

func (c *Config) DKGTimeout() time.Duration { return c.dkgTimeout }

func (c *Config) Chains() []ChainEndpoint { return c.chains }

func (c *Config) BootstrapPeers() []string { return c.bootstrapPeers }

func (c *Config) GrpcOptions() []grpc.DialOption { return c.grpcOpts }

func (c *Config) Logger() elog.Logger { return c.logger }

func (c *Config) Clock() clock.Clock { return c.clock }

func WithConfigFolder(folder string) ConfigOption {
	return func(c *Config) { c.configFolder = folder }
}

func WithListenAddress(addr string) ConfigOption {
	return func(c *Config) { c.listenAddr = addr }
}

func WithControlPort(port string) ConfigOption {
	return func(c *Config) { c.controlPort = port }
}

func WithStorageEngine(t StorageType) ConfigOption {
	return func(c *Config) { c.storageEngine = t }
}

func WithBoltOptions(opts *bolt.Options) ConfigOption {
	return func(c *Config) { c.boltOpts = opts }
}

func WithDKGTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.dkgTimeout = d }
}

func WithChains(chains ...ChainEndpoint) ConfigOption {
	return func(c *Config) { c.chains = chains }
}

func WithBootstrapPeers(peers ...string) ConfigOption {
	return func(c *Config) { c.bootstrapPeers = peers }
}

func WithGrpcOptions(opts ...grpc.DialOption) ConfigOption {
	return func(c *Config) { c.grpcOpts = opts }
}

func WithLogger(l elog.Logger) ConfigOption {
	return func(c *Config) { c.logger = l }
}

func WithClock(cl clock.Clock) ConfigOption {
	return func(c *Config) { c.clock = cl }
}

// OpenStore opens the repository backend selected by StorageEngine rooted
// at DBFolder, matching the teacher's per-storage-type dispatch
// (chain/store.go's NewBoltStore/NewBadgerStore selection).
func (c *Config) OpenStore() (store.Store, error) {
	return openStore(c)
}
