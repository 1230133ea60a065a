package api

import (
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/types"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"os"
	"path/filepath"
)

// Local is the local/stratum file written by p2pool's --local-api.
type Local struct {
	Hashrate15m   uint64  `json:"hashrate_15m"`
	Hashrate1h    uint64  `json:"hashrate_1h"`
	Hashrate24h   uint64  `json:"hashrate_24h"`
	SharesFound   uint64  `json:"shares_found"`
	AverageEffort float64 `json:"average_effort"`
	CurrentEffort float64 `json:"current_effort"`
	Connections   uint32  `json:"connections"`
}

// Network is the network/stats file, the Monero mainchain as seen by p2pool.
type Network struct {
	Difficulty types.Difficulty `json:"difficulty"`
	Hash       types.Hash       `json:"hash"`
	Height     uint64           `json:"height"`
	Reward     uint64           `json:"reward"`
	Timestamp  uint64           `json:"timestamp"`
}

// Pool is the pool/stats file, the sidechain as seen by p2pool.
type Pool struct {
	PoolStatistics PoolStatistics `json:"pool_statistics"`
}

type PoolStatistics struct {
	HashRate uint64 `json:"hashRate"`
	Miners   uint32 `json:"miners"`
	// SidechainDifficulty is absent in older p2pool releases.
	SidechainDifficulty types.Difficulty `json:"sidechainDifficulty"`
	SidechainHeight     uint64           `json:"sidechainHeight"`
}

// Paths are the three stats files under a --data-api directory.
type Paths struct {
	Local   string `json:"local"`
	Network string `json:"network"`
	Pool    string `json:"pool"`
}

func NewPaths(dataDir string) Paths {
	return Paths{
		Local:   filepath.Join(dataDir, "local", "stratum"),
		Network: filepath.Join(dataDir, "network", "stats"),
		Pool:    filepath.Join(dataDir, "pool", "stats"),
	}
}

// P2PoolApi reads the stats files p2pool keeps updating on disk.
type P2PoolApi struct {
	Paths Paths
}

func NewP2PoolApi(paths Paths) *P2PoolApi {
	return &P2PoolApi{
		Paths: paths,
	}
}

// EnsureTemplates creates every missing file with all fields zeroed, so the first reads
// do not fail before p2pool wrote anything.
func (p *P2PoolApi) EnsureTemplates() error {
	var errs []error
	for path, template := range map[string]any{
		p.Paths.Local:   Local{},
		p.Paths.Network: Network{},
		p.Paths.Pool:    Pool{},
	} {
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}

		if buf, err := utils.MarshalJSON(template); err != nil {
			errs = append(errs, err)
		} else if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			errs = append(errs, err)
		} else if err = utils.WriteFileAtomic(path, buf, 0o644); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *P2PoolApi) Local() (*Local, error) {
	result := &Local{}
	return result, readJSON(p.Paths.Local, result)
}

func (p *P2PoolApi) Network() (*Network, error) {
	result := &Network{}
	return result, readJSON(p.Paths.Network, result)
}

func (p *P2PoolApi) Pool() (*Pool, error) {
	result := &Pool{}
	return result, readJSON(p.Paths.Pool, result)
}

func readJSON(path string, result any) error {
	if buf, err := os.ReadFile(path); err != nil {
		return err
	} else {
		if err = utils.UnmarshalJSON(buf, result); err != nil {
			return fmt.Errorf("could not parse %s (%q): %w", path, utils.LogSafe(string(buf)), err)
		}
		return nil
	}
}
