package main

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// endpointURL turns a node address into a dialable URL. Full URLs are kept as
// they are; a bare host or host:port gets the http scheme and defaultPort
// when the port is missing.
func endpointURL(addr string, defaultPort int) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("empty endpoint")
	}
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("invalid endpoint %q: %w", addr, err)
		}
		return u.String(), nil
	}
	// IPC endpoints are file paths
	if strings.HasPrefix(addr, "/") || strings.HasSuffix(addr, ".ipc") {
		return addr, nil
	}
	host, port, err := splitHostPort(addr, defaultPort)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", addr, err)
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// splitHostPort splits an address into host and port, using defaultPort if no port is specified.
func splitHostPort(addr string, defaultPort int) (string, string, error) {
	ipaddr, port, err := net.SplitHostPort(addr)
	if err != nil {
		addr = addr + ":" + strconv.Itoa(defaultPort)
		ipaddr, port, err = net.SplitHostPort(addr)
		if err != nil {
			return "", "", err
		}
	}
	return ipaddr, port, nil
}
