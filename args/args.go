package args

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	Loopback      = "127.0.0.1"
	MinPort       = 1
	MaxPort       = 65535
	flagNoColor   = "--no-color"
	localhostName = "localhost"
)

var ErrInvalidPort = errors.New("port must be within [1, 65535]")

// NormalizeHost rewrites localhost to the IPv4 loopback, xmrig does not resolve it.
func NormalizeHost(host string) string {
	if strings.EqualFold(host, localhostName) {
		return Loopback
	}
	return host
}

// NormalizeHostPort applies NormalizeHost to the host part of host:port.
func NormalizeHostPort(hostPort string) string {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return NormalizeHost(hostPort)
	}
	return net.JoinHostPort(NormalizeHost(host), port)
}

func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w, got %d", ErrInvalidPort, port)
	}
	return nil
}

func parsePort(flag, value string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", flag, err)
	}
	if err = ValidatePort(port); err != nil {
		return 0, fmt.Errorf("%s: %w", flag, err)
	}
	return port, nil
}

func parseRange(flag, value string, low, high int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", flag, err)
	}
	if n < low || n > high {
		return 0, fmt.Errorf("%s must be within [%d, %d], got %d", flag, low, high, n)
	}
	return n, nil
}

// argv is a small builder for flag lists.
type argv []string

func (a *argv) flag(name string) {
	*a = append(*a, name)
}

func (a *argv) value(name, value string) {
	*a = append(*a, name, value)
}

func (a *argv) int(name string, value int) {
	*a = append(*a, name, strconv.Itoa(value))
}

func (a argv) has(names ...string) bool {
	for _, arg := range a {
		for _, name := range names {
			if arg == name || strings.HasPrefix(arg, name+"=") {
				return true
			}
		}
	}
	return false
}

// split parses a user supplied argument string, localhost in any value is rewritten.
func split(arguments string) argv {
	fields := strings.Fields(arguments)
	for i, f := range fields {
		if strings.EqualFold(f, localhostName) {
			fields[i] = Loopback
		} else if strings.HasPrefix(strings.ToLower(f), localhostName+":") {
			fields[i] = NormalizeHostPort(f)
		} else if flag, value, ok := strings.Cut(f, "="); ok && strings.HasPrefix(strings.ToLower(value), localhostName) {
			fields[i] = flag + "=" + NormalizeHostPort(value)
		}
	}
	return fields
}
