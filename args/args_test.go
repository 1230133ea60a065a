package args

import (
	"git.gammaspectra.live/P2Pool/gupax/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
)

const testAddress = "42HEEF3NM9cHkJoPpDhNyJHuZ6DFhdtymCohF9CwP5KPM1Mp3eH2RVXCPRrxe4iWRogT7299R8PP7drGvThE8bHmRDq1qWp"

func advancedP2pool() config.P2pool {
	return config.P2pool{
		Mini:      true,
		LightMode: true,
		OutPeers:  50,
		InPeers:   100,
		LogLevel:  5,
		Address:   testAddress,
		Host:      config.Node{IP: "localhost", RPC: 18089, ZMQ: 18084},
	}
}

func TestP2poolRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := advancedP2pool()
	dataDir := filepath.Join("p2pool")

	launch, err := BuildP2pool(cfg, dataDir, nil)
	require.NoError(t, err)

	image, err := ParseP2poolArgs(launch.Argv)
	require.NoError(t, err)
	assert.Equal(t, launch.Image, image)
	assert.Equal(t, P2poolImage{
		Mini:      true,
		LightMode: true,
		Address:   testAddress,
		Host:      Loopback,
		RPC:       18089,
		ZMQ:       18084,
		OutPeers:  50,
		InPeers:   100,
		LogLevel:  5,
		DataApi:   dataDir,
	}, image)

	assert.Contains(t, launch.Argv, "--local-api")
	assert.Contains(t, launch.Argv, "--no-color")
	assert.NotContains(t, launch.Argv, "localhost")
	assert.Equal(t, filepath.Join(dataDir, "local", "stratum"), launch.Paths.Local)
	assert.Equal(t, filepath.Join(dataDir, "network", "stats"), launch.Paths.Network)
	assert.Equal(t, filepath.Join(dataDir, "pool", "stats"), launch.Paths.Pool)
}

func TestP2poolSimple(t *testing.T) {
	t.Parallel()
	cfg := config.Default().P2pool
	cfg.Address = testAddress
	cfg.Node = config.CommunityNodes[0]
	backups := []config.Node{config.CommunityNodes[0], config.CommunityNodes[1]}

	launch, err := BuildP2pool(cfg, "data", backups)
	require.NoError(t, err)
	assert.True(t, launch.Image.Mini)
	assert.Equal(t, config.CommunityNodes[0].IP, launch.Image.Host)
	assert.Equal(t, 10, launch.Image.OutPeers)

	// the chosen node is not repeated, the other backup follows it
	var hosts []string
	for i, a := range launch.Argv {
		if a == "--host" {
			hosts = append(hosts, launch.Argv[i+1])
		}
	}
	assert.Equal(t, []string{config.CommunityNodes[0].IP, config.CommunityNodes[1].IP}, hosts)
}

func TestP2poolOverride(t *testing.T) {
	t.Parallel()
	cfg := config.P2pool{
		Arguments: "--wallet " + testAddress + " --host localhost --rpc-port 18081 --zmq-port 18083 --mini --out-peers 20",
	}

	launch, err := BuildP2pool(cfg, "data", nil)
	require.NoError(t, err)
	assert.Equal(t, Loopback, launch.Image.Host)
	assert.Equal(t, 20, launch.Image.OutPeers)
	assert.True(t, launch.Image.Mini)
	assert.Equal(t, "data", launch.Image.DataApi)
	assert.Contains(t, launch.Argv, "--local-api")

	cfg.Arguments = "--data-api /somewhere --local-api"
	launch, err = BuildP2pool(cfg, "data", nil)
	require.NoError(t, err)
	assert.Equal(t, "/somewhere", launch.Image.DataApi)

	cfg.Arguments = "--rpc-port 0"
	_, err = BuildP2pool(cfg, "data", nil)
	require.ErrorIs(t, err, ErrInvalidPort)

	cfg.Arguments = "--host"
	_, err = BuildP2pool(cfg, "data", nil)
	require.Error(t, err)
}

func TestP2poolValidation(t *testing.T) {
	t.Parallel()
	for _, c := range []struct {
		name   string
		modify func(cfg *config.P2pool)
	}{
		{"rpc zero", func(cfg *config.P2pool) { cfg.Host.RPC = 0 }},
		{"rpc high", func(cfg *config.P2pool) { cfg.Host.RPC = 65536 }},
		{"zmq zero", func(cfg *config.P2pool) { cfg.Host.ZMQ = 0 }},
		{"address", func(cfg *config.P2pool) { cfg.Address = "4abc" }},
		{"peers", func(cfg *config.P2pool) { cfg.OutPeers = 1000 }},
	} {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cfg := advancedP2pool()
			c.modify(&cfg)
			_, err := BuildP2pool(cfg, "data", nil)
			require.Error(t, err)
		})
	}

	cfg := advancedP2pool()
	cfg.Host.RPC = 65535
	cfg.Host.ZMQ = 1
	_, err := BuildP2pool(cfg, "data", nil)
	require.NoError(t, err)
}

func TestXmrigRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := config.Xmrig{
		Threads:   1,
		Pause:     60,
		Tls:       true,
		Keepalive: true,
		Rig:       "rig1",
		Address:   testAddress,
		Pool:      config.Pool{IP: "localhost", Port: 3334},
		ApiIp:     "localhost",
		ApiPort:   18090,
	}

	launch, err := BuildXmrig(cfg)
	require.NoError(t, err)
	image, err := ParseXmrigArgs(launch.Argv)
	require.NoError(t, err)
	assert.Equal(t, launch.Image, image)
	assert.Equal(t, XmrigImage{
		Threads:   1,
		Url:       "127.0.0.1:3334",
		User:      testAddress,
		Rig:       "rig1",
		Pause:     60,
		Tls:       true,
		Keepalive: true,
		ApiHost:   Loopback,
		ApiPort:   18090,
	}, image)
	assert.NotContains(t, launch.Argv, "localhost")
}

func TestXmrigSimple(t *testing.T) {
	t.Parallel()
	cfg := config.Default().Xmrig
	launch, err := BuildXmrig(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultRig, launch.Image.User)
	assert.Equal(t, "127.0.0.1:3333", launch.Image.Url)
	assert.Equal(t, 18088, launch.Image.ApiPort)
	assert.Equal(t, cfg.Threads, launch.Image.Threads)
	assert.NotContains(t, launch.Argv, "--pause-on-active")
}

func TestXmrigOverride(t *testing.T) {
	t.Parallel()
	launch, err := BuildXmrig(config.Xmrig{Arguments: "-o localhost:3333 -u x -t 1 -k"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3333", launch.Image.Url)
	assert.True(t, launch.Image.Keepalive)
	assert.Equal(t, Loopback, launch.Image.ApiHost)
	assert.Equal(t, 18088, launch.Image.ApiPort)
	assert.Contains(t, launch.Argv, "--http-port")

	launch, err = BuildXmrig(config.Xmrig{Arguments: "--url=pool.example:443 --http-port=9999"})
	require.NoError(t, err)
	assert.Equal(t, "pool.example:443", launch.Image.Url)
	assert.Equal(t, 9999, launch.Image.ApiPort)
	assert.NotContains(t, launch.Argv, "18088")
}

func TestXmrigValidation(t *testing.T) {
	t.Parallel()
	base := config.Xmrig{Threads: 1, Pool: config.Pool{IP: "localhost", Port: 3333}, ApiIp: "localhost", ApiPort: 18088}

	cfg := base
	cfg.Pool.Port = 0
	_, err := BuildXmrig(cfg)
	require.ErrorIs(t, err, ErrInvalidPort)

	cfg = base
	cfg.ApiPort = 70000
	_, err = BuildXmrig(cfg)
	require.ErrorIs(t, err, ErrInvalidPort)

	cfg = base
	cfg.Threads = 0
	_, err = BuildXmrig(cfg)
	require.Error(t, err)

	cfg = base
	cfg.Pause = 256
	_, err = BuildXmrig(cfg)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Loopback, NormalizeHost("localhost"))
	assert.Equal(t, Loopback, NormalizeHost("LocalHost"))
	assert.Equal(t, "node.example", NormalizeHost("node.example"))
	assert.Equal(t, "127.0.0.1:3333", NormalizeHostPort("localhost:3333"))
	assert.Equal(t, "[::1]:3333", NormalizeHostPort("[::1]:3333"))
}
