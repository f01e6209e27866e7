package fetcher

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/maxfraid/cs2crap/pkg/errors"
)

// Proxy is a single forward proxy endpoint
type Proxy struct {
	Host string
	Port int
}

// URL returns the proxy as an http:// URL suitable for http.Transport
func (p Proxy) URL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
}

func (p Proxy) String() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ProxySource provides the proxy pool for a single fetch call.
// The pool is loaded fresh on every call so the list file can be
// swapped without restarting the process.
type ProxySource interface {
	Load() ([]Proxy, error)
}

// FileProxySource reads newline-delimited host:port entries from a file
type FileProxySource struct {
	Path string
}

// Load reads and validates the proxy list
func (s FileProxySource) Load() ([]Proxy, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("cannot open proxy list %s", s.Path), err)
	}
	defer f.Close()

	var proxies []Proxy
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxy, ok := parseProxyLine(line)
		if !ok {
			continue
		}
		proxies = append(proxies, proxy)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("cannot read proxy list %s", s.Path), err)
	}

	return proxies, nil
}

// StaticProxySource serves a fixed pool, mainly for tests
type StaticProxySource []Proxy

// Load returns a copy of the fixed pool
func (s StaticProxySource) Load() ([]Proxy, error) {
	out := make([]Proxy, len(s))
	copy(out, s)
	return out, nil
}

// parseProxyLine parses a single host:port entry
func parseProxyLine(line string) (Proxy, bool) {
	host, portStr, err := net.SplitHostPort(line)
	if err != nil {
		return Proxy{}, false
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Proxy{}, false
	}

	// Hostnames are allowed; numeric addresses must be valid IPs
	if host == "" {
		return Proxy{}, false
	}
	if first := host[0]; first >= '0' && first <= '9' {
		if net.ParseIP(host) == nil {
			return Proxy{}, false
		}
	}

	return Proxy{Host: host, Port: port}, true
}
