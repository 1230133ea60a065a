package config

import (
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"runtime"
)

const (
	StateFile  = "state.yaml"
	NodeFile   = "node.yaml"
	PoolFile   = "pool.yaml"
	CrashFile  = "crash.txt"
	LedgerDir  = "p2pool"
	dirName    = "Gupax"
	dirNameNix = "gupax"
)

const (
	MinPeers    = 10
	MaxPeers    = 450
	MaxLogLevel = 6
	MaxPause    = 255
)

var logger = utils.Logger("Config")

// State is the configuration snapshot the core consumes.
type State struct {
	Gupax  Gupax  `yaml:"gupax"`
	P2pool P2pool `yaml:"p2pool"`
	Xmrig  Xmrig  `yaml:"xmrig"`
}

type Gupax struct {
	AutoUpdate   bool   `yaml:"auto_update"`
	AutoP2pool   bool   `yaml:"auto_p2pool"`
	AutoXmrig    bool   `yaml:"auto_xmrig"`
	UpdateViaTor bool   `yaml:"update_via_tor"`
	TorProxy     string `yaml:"tor_proxy"`
	P2poolPath   string `yaml:"p2pool_path"`
	XmrigPath    string `yaml:"xmrig_path"`
	ApiBind      string `yaml:"api_bind"`
	// Versions last installed by the updater.
	Versions Versions `yaml:"versions"`
}

type Versions struct {
	Gupax  string `yaml:"gupax"`
	P2pool string `yaml:"p2pool"`
	Xmrig  string `yaml:"xmrig"`
}

type P2pool struct {
	Simple    bool   `yaml:"simple"`
	Mini      bool   `yaml:"mini"`
	LightMode bool   `yaml:"light_mode"`
	OutPeers  int    `yaml:"out_peers"`
	InPeers   int    `yaml:"in_peers"`
	LogLevel  int    `yaml:"log_level"`
	Address   string `yaml:"address"`
	// Node is the remote node picked in simple mode.
	Node Node `yaml:"node"`
	// Host is the typed upstream in advanced mode.
	Host Node `yaml:"host"`
	// Arguments overrides everything else in advanced mode when not empty.
	Arguments string `yaml:"arguments"`
}

type Xmrig struct {
	Simple    bool   `yaml:"simple"`
	Threads   int    `yaml:"threads"`
	Pause     int    `yaml:"pause"`
	Tls       bool   `yaml:"tls"`
	Keepalive bool   `yaml:"keepalive"`
	Rig       string `yaml:"rig"`
	Address   string `yaml:"address"`
	Pool      Pool   `yaml:"pool"`
	ApiIp     string `yaml:"api_ip"`
	ApiPort   int    `yaml:"api_port"`
	Arguments string `yaml:"arguments"`
}

// Pool is a stratum endpoint the miner connects to.
type Pool struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
	Rig  string `yaml:"rig"`
}

func MaxThreads() int {
	return max(1, runtime.NumCPU())
}

func Default() *State {
	p2poolPath, xmrigPath := "p2pool/p2pool", "xmrig/xmrig"
	if runtime.GOOS == "windows" {
		p2poolPath, xmrigPath = `P2Pool\p2pool.exe`, `XMRig\xmrig.exe`
	}

	return &State{
		Gupax: Gupax{
			AutoUpdate: false,
			TorProxy:   "127.0.0.1:9050",
			P2poolPath: p2poolPath,
			XmrigPath:  xmrigPath,
			ApiBind:    "127.0.0.1:8733",
		},
		P2pool: P2pool{
			Simple:   true,
			Mini:     true,
			OutPeers: 10,
			InPeers:  10,
			LogLevel: 3,
			Node:     CommunityNodes[0],
			Host: Node{
				Name: "Local Monero Node",
				IP:   "localhost",
				RPC:  18081,
				ZMQ:  18083,
			},
		},
		Xmrig: Xmrig{
			Simple:  true,
			Threads: max(1, MaxThreads()/2),
			Pool: Pool{
				Name: "Local P2Pool",
				IP:   "localhost",
				Port: 3333,
			},
			ApiIp:   "localhost",
			ApiPort: 18088,
		},
	}
}

// Clamp silently corrects values a hand-edited or older file may carry.
func (s *State) Clamp() {
	s.Xmrig.Threads = min(max(s.Xmrig.Threads, 1), MaxThreads())
	s.Xmrig.Pause = min(max(s.Xmrig.Pause, 0), MaxPause)
	s.P2pool.OutPeers = min(max(s.P2pool.OutPeers, MinPeers), MaxPeers)
	s.P2pool.InPeers = min(max(s.P2pool.InPeers, MinPeers), MaxPeers)
	s.P2pool.LogLevel = min(max(s.P2pool.LogLevel, 0), MaxLogLevel)
}

// Dir returns the per-user data directory, it is not created.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "linux" {
		return filepath.Join(base, dirNameNix), nil
	}
	return filepath.Join(base, dirName), nil
}

// Load reads a State from path, keys missing from the file keep their defaults.
// A missing file is created with defaults.
func Load(path string) (*State, error) {
	s := Default()
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Noticef("%s not found, writing defaults", path)
		return s, Save(path, s)
	} else if err != nil {
		return nil, err
	}

	if err = yaml.Unmarshal(buf, s); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	s.Clamp()
	return s, nil
}

func Save(path string, s *State) error {
	return saveYaml(path, s)
}

func Marshal(s *State) ([]byte, error) {
	return yaml.Marshal(s)
}

func saveYaml(path string, v any) error {
	buf, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, buf, 0o644)
}
