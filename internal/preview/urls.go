package preview

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"github.com/Iron-Ham/tandem/internal/provider"
)

// maxPortAttempts is how many consecutive ports Listen tries when the
// preferred one is taken.
const maxPortAttempts = 10

// listen binds host:port. When the port is in use and strict is false the
// following ports are tried.
func listen(ctx context.Context, host string, port int, strict bool) (net.Listener, error) {
	var lc net.ListenConfig
	attempts := maxPortAttempts
	if strict || port == 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port+i))
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			return ln, nil
		}
		lastErr = err
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
	}
	if strict {
		return nil, fmt.Errorf("port %d is in use: %w", port, lastErr)
	}
	return nil, fmt.Errorf("no free port in %d-%d: %w", port, port+attempts-1, lastErr)
}

// resolveURLs lists the addresses a browser can use to reach a server bound
// to host:port.
func resolveURLs(host string, port int) *provider.URLs {
	urls := &provider.URLs{Local: []string{}, Network: []string{}}

	switch host {
	case "", "0.0.0.0", "::":
		urls.Local = append(urls.Local, httpURL("localhost", port))
		urls.Network = append(urls.Network, interfaceURLs(port)...)
		return urls
	case "localhost":
		urls.Local = append(urls.Local, httpURL(host, port))
		return urls
	}

	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		urls.Local = append(urls.Local, httpURL(host, port))
	} else {
		urls.Network = append(urls.Network, httpURL(host, port))
	}
	return urls
}

// interfaceURLs returns one URL per non-loopback IPv4 interface address.
func interfaceURLs(port int) []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var out []string
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
			continue
		}
		out = append(out, httpURL(ipnet.IP.String(), port))
	}
	return out
}

func httpURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}

func portOf(ln net.Listener) int {
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
