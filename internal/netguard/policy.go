// Package netguard decides which hosts outbound feed requests may reach.
package netguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"

	"golang.org/x/net/idna"
)

// ErrBlockedHost is returned for hosts inside an internal address range.
var ErrBlockedHost = errors.New("host is not allowed")

// LookupFunc resolves a hostname, normally net.DefaultResolver.LookupNetIP.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

var defaultBlocked = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"224.0.0.0/4",
	"255.255.255.255/32",
	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

// hostProfile maps hostnames for lookup without STD3 rules, so names with
// underscores that resolve in practice are not refused.
var hostProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(false))

// Policy is an immutable table of blocked prefixes. Build it once and share it.
type Policy struct {
	blocked []netip.Prefix
	lookup  LookupFunc
}

// NewPolicy parses the given CIDR list. lookup may be nil, in which case
// hostnames are judged by name only.
func NewPolicy(cidrs []string, lookup LookupFunc) (*Policy, error) {
	p := &Policy{lookup: lookup}
	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("parse prefix %q: %w", c, err)
		}
		p.blocked = append(p.blocked, prefix.Masked())
	}
	return p, nil
}

// DefaultPolicy blocks loopback, private, shared, link-local, unique-local,
// multicast and unspecified ranges.
func DefaultPolicy(lookup LookupFunc) *Policy {
	p, err := NewPolicy(defaultBlocked, lookup)
	if err != nil {
		panic(err)
	}
	return p
}

// BlockedAddr reports whether addr falls in a blocked prefix. IPv4-mapped IPv6
// addresses are checked as IPv4.
func (p *Policy) BlockedAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	addr = addr.Unmap().WithZone("")
	for _, prefix := range p.blocked {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// CheckHost validates a host component without touching the network.
func (p *Policy) CheckHost(host string) error {
	h := strings.TrimSuffix(strings.TrimSpace(host), ".")
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	if h == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedHost)
	}
	if addr, err := netip.ParseAddr(h); err == nil {
		if p.BlockedAddr(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedHost, h)
		}
		return nil
	}
	if looksNumeric(h) {
		// 0177.0.0.1, 2130706433 and friends resolve to internal addresses
		// in some stacks and are never legitimate feed hosts.
		return fmt.Errorf("%w: ambiguous numeric host %s", ErrBlockedHost, h)
	}
	ascii, err := hostProfile.ToASCII(h)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedHost, err)
	}
	ascii = strings.ToLower(ascii)
	if ascii == "localhost" || strings.HasSuffix(ascii, ".localhost") {
		return fmt.Errorf("%w: %s", ErrBlockedHost, ascii)
	}
	return nil
}

// CheckURL validates scheme, credentials and host of u.
func (p *Policy) CheckURL(u *url.URL) error {
	if u == nil {
		return fmt.Errorf("%w: nil url", ErrBlockedHost)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrBlockedHost, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in url", ErrBlockedHost)
	}
	return p.CheckHost(u.Hostname())
}

// CheckResolved runs CheckHost and, when a resolver is configured, verifies
// every address the hostname resolves to.
func (p *Policy) CheckResolved(ctx context.Context, host string) error {
	if err := p.CheckHost(host); err != nil {
		return err
	}
	if p.lookup == nil {
		return nil
	}
	if _, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return nil
	}
	addrs, err := p.lookup(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, a := range addrs {
		if p.BlockedAddr(a) {
			return fmt.Errorf("%w: %s resolves to %s", ErrBlockedHost, host, a)
		}
	}
	return nil
}

// Control is a net.Dialer Control hook that refuses connections to blocked
// addresses after DNS resolution.
func (p *Policy) Control(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	if p.BlockedAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, ap.Addr())
	}
	return nil
}

// Dialer returns a dialer guarded by Control.
func (p *Policy) Dialer() *net.Dialer {
	return &net.Dialer{Control: p.Control}
}

// looksNumeric reports whether every label is a decimal, octal or hex number,
// the forms inet_aton accepts.
func looksNumeric(h string) bool {
	for _, label := range strings.Split(strings.ToLower(h), ".") {
		if !numericLabel(label) {
			return false
		}
	}
	return true
}

func numericLabel(label string) bool {
	digits := "0123456789"
	if rest, ok := strings.CutPrefix(label, "0x"); ok {
		label, digits = rest, "0123456789abcdef"
		if label == "" {
			return true
		}
	}
	if label == "" {
		return false
	}
	for _, r := range label {
		if !strings.ContainsRune(digits, r) {
			return false
		}
	}
	return true
}
