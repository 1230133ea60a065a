package args

import (
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"net"
	"strconv"
	"strings"
)

// DefaultRig is used as xmrig user and rig id when none is configured.
const DefaultRig = "Gupax"

// XmrigImage is what xmrig was launched with.
type XmrigImage struct {
	Threads   int    `json:"threads"`
	Url       string `json:"url"`
	User      string `json:"user"`
	Rig       string `json:"rig"`
	Pause     int    `json:"pause"`
	Tls       bool   `json:"tls"`
	Keepalive bool   `json:"keepalive"`
	ApiHost   string `json:"api_host"`
	ApiPort   int    `json:"api_port"`
}

// DefaultXmrigImage holds the values used for flags that are not given.
func DefaultXmrigImage() XmrigImage {
	return XmrigImage{
		Threads: 1,
		Url:     Loopback + ":3333",
		User:    "x",
		ApiHost: Loopback,
		ApiPort: 18088,
	}
}

type XmrigLaunch struct {
	Argv  []string
	Image XmrigImage
}

func BuildXmrig(cfg config.Xmrig) (*XmrigLaunch, error) {
	var a argv

	if !cfg.Simple && cfg.Arguments != "" {
		a = split(cfg.Arguments)
		if !a.has("--http-host") {
			a.value("--http-host", Loopback)
		}
		if !a.has("--http-port") {
			a.int("--http-port", DefaultXmrigImage().ApiPort)
		}
		if !a.has(flagNoColor) {
			a.flag(flagNoColor)
		}
	} else {
		image := DefaultXmrigImage()
		image.Threads = cfg.Threads
		image.Pause = cfg.Pause

		var host string
		var port int
		if cfg.Simple {
			rig := cfg.Rig
			if rig == "" {
				rig = DefaultRig
			}
			image.User, image.Rig = rig, rig
			host, port = Loopback, 3333
		} else {
			image.Rig = cfg.Rig
			if cfg.Address != "" {
				image.User = cfg.Address
			}
			image.Tls, image.Keepalive = cfg.Tls, cfg.Keepalive
			host, port = cfg.Pool.IP, cfg.Pool.Port
			image.ApiHost, image.ApiPort = NormalizeHost(cfg.ApiIp), cfg.ApiPort
		}

		if err := ValidatePort(port); err != nil {
			return nil, fmt.Errorf("pool port: %w", err)
		}
		if err := ValidatePort(image.ApiPort); err != nil {
			return nil, fmt.Errorf("api port: %w", err)
		}
		if image.Threads < 1 || image.Threads > config.MaxThreads() {
			return nil, fmt.Errorf("threads must be within [1, %d], got %d", config.MaxThreads(), image.Threads)
		}
		if image.Pause < 0 || image.Pause > config.MaxPause {
			return nil, fmt.Errorf("pause must be within [0, %d], got %d", config.MaxPause, image.Pause)
		}
		image.Url = net.JoinHostPort(NormalizeHost(host), strconv.Itoa(port))

		a.value("--url", image.Url)
		a.value("--user", image.User)
		if image.Rig != "" {
			a.value("--rig-id", image.Rig)
		}
		a.int("--threads", image.Threads)
		a.value("--http-host", image.ApiHost)
		a.int("--http-port", image.ApiPort)
		if image.Pause > 0 {
			a.int("--pause-on-active", image.Pause)
		}
		if image.Tls {
			a.flag("--tls")
		}
		if image.Keepalive {
			a.flag("--keepalive")
		}
		a.flag(flagNoColor)
	}

	image, err := ParseXmrigArgs(a)
	if err != nil {
		return nil, err
	}
	return &XmrigLaunch{
		Argv:  a,
		Image: image,
	}, nil
}

// ParseXmrigArgs recovers the launch image from an argument list, both long and
// short forms are recognized. Values may also be attached as --flag=value.
func ParseXmrigArgs(a []string) (image XmrigImage, err error) {
	image = DefaultXmrigImage()

	for i := 0; i < len(a); i++ {
		flag, value, attached := strings.Cut(a[i], "=")
		switch flag {
		case "--tls":
			image.Tls = true
			continue
		case "--keepalive", "-k":
			image.Keepalive = true
			continue
		case "--url", "-o", "--user", "-u", "--rig-id", "--threads", "-t", "--pause-on-active", "--http-host", "--http-port":
		default:
			continue
		}

		if !attached {
			if i+1 >= len(a) {
				return image, fmt.Errorf("%s is missing its value", flag)
			}
			i++
			value = a[i]
		}

		switch flag {
		case "--url", "-o":
			image.Url = NormalizeHostPort(value)
		case "--user", "-u":
			image.User = value
		case "--rig-id":
			image.Rig = value
		case "--threads", "-t":
			image.Threads, err = parseRange(flag, value, 1, config.MaxThreads())
		case "--pause-on-active":
			image.Pause, err = parseRange(flag, value, 0, config.MaxPause)
		case "--http-host":
			image.ApiHost = NormalizeHost(value)
		case "--http-port":
			image.ApiPort, err = parsePort(flag, value)
		}
		if err != nil {
			return image, err
		}
	}
	return image, nil
}
