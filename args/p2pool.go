package args

import (
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"git.gammaspectra.live/P2Pool/gupax/monero/address"
	"git.gammaspectra.live/P2Pool/gupax/p2pool/api"
	"git.gammaspectra.live/P2Pool/gupax/utils"
)

// P2poolImage is what p2pool was launched with.
type P2poolImage struct {
	Mini      bool   `json:"mini"`
	LightMode bool   `json:"light_mode"`
	Address   string `json:"address"`
	Host      string `json:"host"`
	RPC       int    `json:"rpc"`
	ZMQ       int    `json:"zmq"`
	OutPeers  int    `json:"out_peers"`
	InPeers   int    `json:"in_peers"`
	LogLevel  int    `json:"log_level"`
	DataApi   string `json:"data_api"`
}

// DefaultP2poolImage holds p2pool's own defaults for flags that are not given.
func DefaultP2poolImage() P2poolImage {
	return P2poolImage{
		Host:     Loopback,
		RPC:      18081,
		ZMQ:      18083,
		OutPeers: 10,
		InPeers:  10,
		LogLevel: 3,
	}
}

type P2poolLaunch struct {
	Argv  []string
	Image P2poolImage
	Paths api.Paths
}

// BuildP2pool translates the configuration into p2pool's command line. dataDir receives the
// stats files, backups are extra upstream nodes tried after the chosen one.
func BuildP2pool(cfg config.P2pool, dataDir string, backups []config.Node) (*P2poolLaunch, error) {
	var a argv
	var err error

	if !cfg.Simple && cfg.Arguments != "" {
		a = split(cfg.Arguments)
		if !a.has("--data-api") {
			a.value("--data-api", dataDir)
		}
		if !a.has("--local-api") {
			a.flag("--local-api")
		}
		if !a.has(flagNoColor) {
			a.flag(flagNoColor)
		}
	} else {
		image := DefaultP2poolImage()
		image.Address = cfg.Address
		image.DataApi = dataDir

		if cfg.Simple {
			image.Mini = true
			image.Host, image.RPC, image.ZMQ = cfg.Node.IP, cfg.Node.RPC, cfg.Node.ZMQ
		} else {
			image.Mini, image.LightMode = cfg.Mini, cfg.LightMode
			image.Host, image.RPC, image.ZMQ = cfg.Host.IP, cfg.Host.RPC, cfg.Host.ZMQ
			image.OutPeers, image.InPeers, image.LogLevel = cfg.OutPeers, cfg.InPeers, cfg.LogLevel
		}

		if err = address.Validate(image.Address); err != nil {
			return nil, fmt.Errorf("wallet address: %w", err)
		} else if !address.HasValidChecksum(image.Address) {
			utils.Noticef("[P2Pool] wallet address %s has an invalid checksum", utils.Shorten(image.Address, 6))
		}
		if err = ValidatePort(image.RPC); err != nil {
			return nil, fmt.Errorf("rpc port: %w", err)
		}
		if err = ValidatePort(image.ZMQ); err != nil {
			return nil, fmt.Errorf("zmq port: %w", err)
		}

		a.value("--wallet", image.Address)
		a.value("--host", NormalizeHost(image.Host))
		a.int("--rpc-port", image.RPC)
		a.int("--zmq-port", image.ZMQ)
		a.int("--out-peers", image.OutPeers)
		a.int("--in-peers", image.InPeers)
		a.int("--loglevel", image.LogLevel)
		a.value("--data-api", image.DataApi)
		a.flag("--local-api")
		a.flag(flagNoColor)
		if image.Mini {
			a.flag("--mini")
		}
		if image.LightMode {
			a.flag("--light-mode")
		}

		for _, node := range backups {
			if node.IP == image.Host && node.RPC == image.RPC && node.ZMQ == image.ZMQ {
				continue
			}
			if ValidatePort(node.RPC) != nil || ValidatePort(node.ZMQ) != nil {
				utils.Noticef("[P2Pool] skipping backup node %s with invalid ports", node)
				continue
			}
			a.value("--host", NormalizeHost(node.IP))
			a.int("--rpc-port", node.RPC)
			a.int("--zmq-port", node.ZMQ)
		}
	}

	image, err := ParseP2poolArgs(a)
	if err != nil {
		return nil, err
	}

	return &P2poolLaunch{
		Argv:  a,
		Image: image,
		Paths: api.NewPaths(image.DataApi),
	}, nil
}

// ParseP2poolArgs recovers the launch image from an argument list. Only the first
// --host, --rpc-port and --zmq-port are considered, later ones are backups.
func ParseP2poolArgs(a []string) (image P2poolImage, err error) {
	image = DefaultP2poolImage()
	seen := make(map[string]bool)

	for i := 0; i < len(a); i++ {
		flag := a[i]
		switch flag {
		case "--mini":
			image.Mini = true
			continue
		case "--light-mode":
			image.LightMode = true
			continue
		case "--wallet", "--host", "--rpc-port", "--zmq-port", "--out-peers", "--in-peers", "--loglevel", "--data-api":
		default:
			continue
		}

		if i+1 >= len(a) {
			return image, fmt.Errorf("%s is missing its value", flag)
		}
		i++
		value := a[i]
		if seen[flag] {
			continue
		}
		seen[flag] = true

		switch flag {
		case "--wallet":
			image.Address = value
		case "--host":
			image.Host = NormalizeHost(value)
		case "--rpc-port":
			image.RPC, err = parsePort(flag, value)
		case "--zmq-port":
			image.ZMQ, err = parsePort(flag, value)
		case "--out-peers":
			image.OutPeers, err = parseRange(flag, value, config.MinPeers, config.MaxPeers)
		case "--in-peers":
			image.InPeers, err = parseRange(flag, value, config.MinPeers, config.MaxPeers)
		case "--loglevel":
			image.LogLevel, err = parseRange(flag, value, 0, config.MaxLogLevel)
		case "--data-api":
			image.DataApi = value
		}
		if err != nil {
			return image, err
		}
	}
	return image, nil
}
