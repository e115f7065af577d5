package sortition

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// bootstrapFile is the YAML shape for a static registered-node set, used
// by dev and test deployments that have no live chain reader to feed the
// registry.
type bootstrapFile struct {
	Chains []struct {
		ChainID uint64   `yaml:"chain_id"`
		Nodes   []string `yaml:"nodes"`
	} `yaml:"chains"`
}

// LoadBootstrap parses a static node-set file into a per-chain candidate
// map.
func LoadBootstrap(path string) (map[uint64][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sortition: reading bootstrap file: %w", err)
	}
	var f bootstrapFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("sortition: parsing bootstrap file: %w", err)
	}
	out := make(map[uint64][]string, len(f.Chains))
	for _, c := range f.Chains {
		if len(c.Nodes) == 0 {
			return nil, fmt.Errorf("sortition: chain %d has no nodes", c.ChainID)
		}
		out[c.ChainID] = c.Nodes
	}
	return out, nil
}

// Bootstrap seeds the registry from a static per-chain node-set map,
// going through the same registration path as CiphernodeAdded events so
// persistence and dedup behave identically. Registration keeps going past
// individual failures; the combined error reports every node that could
// not be registered.
func (r *Registry) Bootstrap(ctx context.Context, sets map[uint64][]string) error {
	var result *multierror.Error
	for chainID, nodes := range sets {
		for _, addr := range nodes {
			ev := events.CiphernodeAdded{ChainID: chainID, Address: addr}
			if err := r.OnCiphernodeAdded(ctx, ev); err != nil {
				result = multierror.Append(result, fmt.Errorf("chain %d node %s: %w", chainID, addr, err))
			}
		}
	}
	return result.ErrorOrNil()
}
