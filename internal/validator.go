package internal

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var loopbackHosts = map[string]struct{}{
	"localhost": {}, "127.0.0.1": {}, "0.0.0.0": {},
}

// IsAllowedURL reports whether raw is an absolute URL with an allowed scheme
// and a hostname other than the literal loopback forms.
func IsAllowedURL(cfg *SecurityConfig, raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return false
	}
	if !cfg.allowedScheme(strings.ToLower(u.Scheme)) {
		return false
	}
	if _, loop := loopbackHosts[canonicalHost(u.Hostname())]; loop {
		return false
	}
	return true
}

// HasBlockedExtension checks the path part (query stripped) against the block list.
func HasBlockedExtension(cfg *SecurityConfig, raw string) bool {
	lower := strings.ToLower(raw)
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}
	for _, sfx := range cfg.blockedSfx {
		if strings.HasSuffix(lower, sfx) {
			return true
		}
	}
	return false
}

// FilterCandidates keeps URLs passing both checks, preserving order.
func FilterCandidates(cfg *SecurityConfig, urls []string) (kept []string, dropped int) {
	kept = make([]string, 0, len(urls))
	for _, u := range urls {
		if IsAllowedURL(cfg, u) && !HasBlockedExtension(cfg, u) {
			kept = append(kept, u)
			continue
		}
		dropped++
	}
	return kept, dropped
}

// canonicalHost lower-cases host and rewrites numeric IPv4 forms the way a
// browser does: 127.1, 0x7f000001, 2130706433 and 0177.0.0.1 all become
// dotted decimal. Anything else is returned lower-cased.
func canonicalHost(host string) string {
	host = strings.ToLower(host)
	parts := strings.Split(host, ".")
	if len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 || len(parts) > 4 {
		return host
	}
	nums := make([]uint64, len(parts))
	for i, p := range parts {
		n, ok := ipv4Number(p)
		if !ok {
			return host
		}
		nums[i] = n
	}
	last := len(nums) - 1
	for _, n := range nums[:last] {
		if n > 255 {
			return host
		}
	}
	if nums[last] >= 1<<(8*(5-len(nums))) {
		return host
	}
	addr := nums[last]
	for i, n := range nums[:last] {
		addr += n << (8 * (3 - i))
	}
	return fmt.Sprintf("%d.%d.%d.%d", addr>>24, addr>>16&0xff, addr>>8&0xff, addr&0xff)
}

// ipv4Number parses one dotted part: 0x hex, leading-zero octal or decimal.
func ipv4Number(p string) (uint64, bool) {
	if p == "" {
		return 0, false
	}
	base := 10
	switch {
	case strings.HasPrefix(p, "0x"):
		p, base = p[2:], 16
		if p == "" {
			return 0, true
		}
	case len(p) > 1 && p[0] == '0':
		p, base = p[1:], 8
	}
	if strings.ContainsAny(p, "+-_") {
		return 0, false
	}
	n, err := strconv.ParseUint(p, base, 32)
	if err != nil {
		return 0, false
	}
	return n, true
}
