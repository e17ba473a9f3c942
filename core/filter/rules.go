package filter

import (
	"fmt"
	"net"
	"strings"

	"github.com/gaurav-prasanna/pagemeta/core"
)

// AddressError is returned when a connection to a filtered address is refused.
type AddressError struct {
	IP     net.IP
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("request filtering: connection to %s refused (%s)", e.IP, e.Reason)
}

// rules is the compiled form of core.FilterOptions.
type rules struct {
	allowPrivate bool
	allowMeta    bool
	allow        []*net.IPNet
	deny         []*net.IPNet
}

func newRules(opts *core.FilterOptions) *rules {
	return &rules{
		allowPrivate: opts.AllowPrivateIPAddress,
		allowMeta:    opts.AllowMetaIPAddress,
		allow:        parseList(opts.AllowIPAddressList),
		deny:         parseList(opts.DenyIPAddressList),
	}
}

// parseList accepts plain IPs and CIDRs; unparsable entries are skipped.
func parseList(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				continue
			}
			bits := 128
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func contains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// check decides whether ip may be dialed. The allow list wins over every
// other rule; the deny list wins over the private/meta switches.
func (r *rules) check(ip net.IP) error {
	if ip == nil {
		return &AddressError{Reason: "unparsable address"}
	}
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	if contains(r.allow, ip) {
		return nil
	}
	if contains(r.deny, ip) {
		return &AddressError{IP: ip, Reason: "denied by list"}
	}
	if ip.IsUnspecified() {
		if r.allowMeta {
			return nil
		}
		return &AddressError{IP: ip, Reason: "meta address"}
	}
	if !r.allowPrivate && IsPrivateIP(ip) {
		return &AddressError{IP: ip, Reason: "private address"}
	}
	return nil
}

// IsPrivateIP reports whether ip belongs to a private, reserved or other
// non-unicast range.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsMulticast() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	return contains(reservedCIDRs, ip)
}
