package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// fallbackServers are queried when the system resolver fails. Well-known,
// high-availability public providers.
var fallbackServers = []string{
	"1.1.1.1",                // Cloudflare
	"1.0.0.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.8.8",                // Google
	"8.8.4.4",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
}

// Lookup resolves a hostname, trying the system resolver first and racing
// the public fallbacks when it fails. IPv4 results are preferred.
func Lookup(host string) (string, error) {
	ip, err := systemLookup(host)
	if err == nil && ip != "" {
		return ip, nil
	}

	return raceFallbacks(host)
}

// systemLookup resolves through the local DNS configuration.
func systemLookup(host string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r := &net.Resolver{}
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}

	return pickAddress(ips)
}

// raceFallbacks queries every fallback server at once and returns the first
// usable answer.
func raceFallbacks(host string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	results := make(chan result, len(fallbackServers))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, server := range fallbackServers {
		go func(server string) {
			ip, err := queryServer(ctx, host, server)
			results <- result{ip: ip, err: err}
		}(server)
	}

	for range fallbackServers {
		select {
		case res := <-results:
			if res.err == nil && res.ip != "" {
				return res.ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: fallback DNS race timed out", host)
		}
	}

	return "", fmt.Errorf("resolve %s: all fallback DNS servers failed", host)
}

// queryServer resolves the host through one specific DNS server.
func queryServer(ctx context.Context, host, server string) (string, error) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := new(net.Dialer)
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}

	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}

	return pickAddress(ips)
}

// pickAddress prefers an IPv4 answer, falling back to whatever came first.
func pickAddress(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("no addresses returned")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
