package rpchttp

import (
	"net"
	"strconv"
	"strings"
)

// HostWhitelist decides which Host header values the server accepts.
// The zero value allows every host.
type HostWhitelist struct {
	only  bool
	hosts []string
}

// AllowAllHosts accepts any Host header, including a missing one.
func AllowAllHosts() HostWhitelist {
	return HostWhitelist{}
}

// AllowOnlyHosts accepts only the given hosts (compared case-insensitively,
// port included) plus the server's own bound addresses. An empty list is
// the same as AllowAllHosts.
func AllowOnlyHosts(hosts ...string) HostWhitelist {
	return HostWhitelist{only: true, hosts: append([]string(nil), hosts...)}
}

// AllowsAll reports whether every host is accepted.
func (w HostWhitelist) AllowsAll() bool {
	return !w.only || len(w.hosts) == 0
}

// Hosts returns the configured hosts. Bound addresses are not included.
func (w HostWhitelist) Hosts() []string {
	return append([]string(nil), w.hosts...)
}

// IsAllowed reports whether a request carrying host (present is false
// when the request had no Host header) is accepted by a server bound to
// bound. It builds the effective host set on every call and suits one-off
// checks; a running server answers from its precomputed set through
// Server.AllowsHost.
func (w HostWhitelist) IsAllowed(host string, present bool, bound []net.Addr) bool {
	return newHostMatcher(w, bound).match(host, present)
}

// hostMatcher is the effective whitelist of one server, computed once
// its addresses are known.
type hostMatcher struct {
	all   bool
	hosts map[string]struct{}
}

func newHostMatcher(w HostWhitelist, bound []net.Addr) *hostMatcher {
	if w.AllowsAll() {
		return &hostMatcher{all: true}
	}

	m := &hostMatcher{hosts: make(map[string]struct{}, len(w.hosts)+2*len(bound))}
	for _, h := range w.hosts {
		m.hosts[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	for _, addr := range bound {
		m.hosts[strings.ToLower(addr.String())] = struct{}{}
		if port, ok := addrPort(addr); ok {
			m.hosts["localhost:"+port] = struct{}{}
		}
	}
	return m
}

func (m *hostMatcher) match(host string, present bool) bool {
	if m.all {
		return true
	}
	if !present {
		return false
	}
	_, ok := m.hosts[strings.ToLower(strings.TrimSpace(host))]
	return ok
}

// addrPort extracts the port of a bound address.
func addrPort(addr net.Addr) (string, bool) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return strconv.Itoa(tcp.Port), true
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil || port == "" {
		return "", false
	}
	return port, true
}
