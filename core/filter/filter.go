// Package filter implements the request-filtering transport agent.
// The returned transports refuse to dial private, loopback, link-local and
// other reserved addresses unless the filter options allow them. Checks run
// on the resolved address at dial time, so DNS answers and redirect targets
// are covered as well.
package filter

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gaurav-prasanna/pagemeta/core"
)

// DisableEnv turns request filtering off when set to "off".
const DisableEnv = "PAGEMETA_REQUEST_FILTERING"

// reservedCIDRs cover every non-unicast range. They are rejected unless
// AllowPrivateIPAddress is set.
var reservedCIDRs = []*net.IPNet{
	mustParseCIDR("0.0.0.0/8"),
	mustParseCIDR("10.0.0.0/8"),
	mustParseCIDR("100.64.0.0/10"),
	mustParseCIDR("127.0.0.0/8"),
	mustParseCIDR("169.254.0.0/16"),
	mustParseCIDR("172.16.0.0/12"),
	mustParseCIDR("192.0.0.0/24"),
	mustParseCIDR("192.0.2.0/24"),
	mustParseCIDR("192.88.99.0/24"),
	mustParseCIDR("192.168.0.0/16"),
	mustParseCIDR("198.18.0.0/15"),
	mustParseCIDR("198.51.100.0/24"),
	mustParseCIDR("203.0.113.0/24"),
	mustParseCIDR("224.0.0.0/4"),
	mustParseCIDR("240.0.0.0/4"),
	mustParseCIDR("::1/128"),
	mustParseCIDR("64:ff9b::/96"),
	mustParseCIDR("100::/64"),
	mustParseCIDR("2001::/23"),
	mustParseCIDR("2001:db8::/32"),
	mustParseCIDR("2002::/16"),
	mustParseCIDR("fc00::/7"),
	mustParseCIDR("fe80::/10"),
	mustParseCIDR("ff00::/8"),
}

func mustParseCIDR(value string) *net.IPNet {
	_, parsed, err := net.ParseCIDR(value)
	if err != nil {
		panic(fmt.Sprintf("invalid CIDR %q: %v", value, err))
	}
	return parsed
}

// Provider implements core.AgentProvider with filtering transports.
type Provider struct {
	base http.RoundTripper

	mu         sync.Mutex
	transports map[string]http.RoundTripper
}

// New creates a filtering Provider with its own transport settings.
func New() *Provider {
	return NewWithBase(nil)
}

// NewWithBase creates a filtering Provider on top of base. An
// *http.Transport is cloned and given the filtering dialer; any other
// RoundTripper is wrapped so the request host is resolved and checked
// before base sees the request.
func NewWithBase(base http.RoundTripper) *Provider {
	return &Provider{base: base, transports: make(map[string]http.RoundTripper)}
}

// Agent returns a transport enforcing opts for rawURL. A transport is built
// once per distinct options value and shared afterwards.
func (p *Provider) Agent(rawURL string, opts *core.FilterOptions) http.RoundTripper {
	if opts == nil {
		opts = &core.FilterOptions{}
	}
	key := fmt.Sprintf("%v|%v|%s|%s", opts.AllowPrivateIPAddress, opts.AllowMetaIPAddress,
		strings.Join(opts.AllowIPAddressList, ","), strings.Join(opts.DenyIPAddressList, ","))

	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.transports[key]; ok {
		return t
	}
	t := p.newAgent(newRules(opts))
	p.transports[key] = t
	return t
}

func (p *Provider) newAgent(r *rules) http.RoundTripper {
	switch base := p.base.(type) {
	case nil:
		return newTransport(r, nil)
	case *http.Transport:
		return newTransport(r, base)
	default:
		return &guard{rules: r, next: base}
	}
}

// Noop is the agent provider for environments without request filtering.
type Noop struct{}

// Agent always defers to the default transport.
func (Noop) Agent(string, *core.FilterOptions) http.RoundTripper {
	return nil
}

// Detect returns a filtering provider built on base unless filtering has
// been switched off through DisableEnv. base may be nil.
func Detect(base http.RoundTripper) core.AgentProvider {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(DisableEnv)), "off") {
		return Noop{}
	}
	return NewWithBase(base)
}

// newTransport returns a transport whose dialer enforces r. Settings are
// copied from base when given.
func newTransport(r *rules, base *http.Transport) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			return r.check(net.ParseIP(host))
		},
	}
	if base == nil {
		return &http.Transport{
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	t := base.Clone()
	// Every connection has to go through the filtering dialer.
	t.Proxy = nil
	t.Dial = nil
	t.DialTLS = nil
	t.DialTLSContext = nil
	t.DialContext = dialer.DialContext
	return t
}

// guard checks the addresses of the request host before handing the
// request to a RoundTripper whose dialing cannot be hooked.
type guard struct {
	rules *rules
	next  http.RoundTripper
}

func (g *guard) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if err := g.rules.check(ip); err != nil {
			return nil, err
		}
		return g.next.RoundTrip(req)
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(req.Context(), host)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if err := g.rules.check(addr.IP); err != nil {
			return nil, err
		}
	}
	return g.next.RoundTrip(req)
}
