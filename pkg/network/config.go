package network

import (
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// DefaultLogsBlockInterval caps the block span of a single eth_getLogs request.
const DefaultLogsBlockInterval = 2000

// Contract is a deployed contract and the block it was deployed at.
type Contract struct {
	Address     common.Address `yaml:"address"`
	DeployBlock uint64         `yaml:"deployBlock"`
}

// Contracts groups the addresses the metric computations read from.
type Contracts struct {
	JuniorVault     Contract `yaml:"juniorVault"`
	SeniorVault     Contract `yaml:"seniorVault"`
	BatchingManager Contract `yaml:"batchingManager"`
	GmxVault        Contract `yaml:"gmxVault"`
	AUsdc           Contract `yaml:"aUsdc"`
	FsGlp           Contract `yaml:"fsGlp"`
	Weth            Contract `yaml:"weth"`
}

// Token is a GLP basket member tracked by market movement, priced by a USD feed.
type Token struct {
	Name      string         `yaml:"name"`
	Address   common.Address `yaml:"address"`
	PriceFeed common.Address `yaml:"priceFeed"`
}

// MarketMovement configures the sampled GMX vault streams.
type MarketMovement struct {
	StartBlock  uint64  `yaml:"startBlock"`
	SampleEvery uint64  `yaml:"sampleEvery"`
	Tokens      []Token `yaml:"tokens"`
}

// Network is one configured chain.
type Network struct {
	Name              string         `yaml:"-"`
	ChainID           uint64         `yaml:"chainId"`
	RPC               []string       `yaml:"rpc"`
	LogsBlockInterval uint64         `yaml:"getLogsBlockInterval"`
	Contracts         Contracts      `yaml:"contracts"`
	MarketMovement    MarketMovement `yaml:"marketMovement"`
}

type file struct {
	Networks map[string]*Network `yaml:"networks"`
}

// Load reads the networks file at path, expanding ${VAR} references from the environment.
func Load(path string) (map[string]*Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a networks document.
func Parse(raw []byte) (map[string]*Network, error) {
	var f file
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &f); err != nil {
		return nil, fmt.Errorf("parse networks file: %w", err)
	}
	if len(f.Networks) == 0 {
		return nil, fmt.Errorf("networks file defines no networks")
	}
	for name, n := range f.Networks {
		if n == nil {
			return nil, fmt.Errorf("network %q is empty", name)
		}
		n.Name = name
		if len(n.RPC) == 0 {
			return nil, fmt.Errorf("network %q has no rpc endpoints", name)
		}
		if n.LogsBlockInterval == 0 {
			n.LogsBlockInterval = DefaultLogsBlockInterval
		}
		if n.MarketMovement.SampleEvery == 0 {
			n.MarketMovement.SampleEvery = 1
		}
	}
	return f.Networks, nil
}

func names(networks map[string]*Network) []string {
	out := make([]string, 0, len(networks))
	for name := range networks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
