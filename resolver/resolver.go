// Package resolver implements the name/service/port resolution subsystem
// from spec.md §4.6: overrides consulted first, then an LRU+TTL cache,
// then iterative DNS queries, with reverse lookups and service/port
// tables symmetric to the forward path.
//
// Grounded on the teacher pack's bassosimone/nop DNS exchange shape
// (dnsoverudp.go/dnsovertcp.go: UDP first, TCP fallback on truncation,
// structured logging via DNSExchangeLogContext), adapted from nop's
// pipeline-of-Funcs composition to a single Resolver type driving
// github.com/miekg/dns directly, since spec.md names one cohesive
// component rather than a composable transport pipeline.
package resolver

import (
	"context"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"

	"github.com/bloomberg/ntf-core-sub027/callback"
	"github.com/bloomberg/ntf-core-sub027/ntcerr"
	"github.com/bloomberg/ntf-core-sub027/strand"
)

// Status classifies a resolver event outcome, the resolver package's
// analogue of the socket package's EventType (kept separate to avoid a
// resolver → socket import).
type Status int

const (
	Complete Status = iota
	Error
	Canceled
)

// Options carries the per-call deadline/cancellation pair, spec.md §6's
// option set narrowed to what a resolve call actually uses.
type Options struct {
	Deadline time.Time
	Token    *callback.Cancellation
}

// IPEvent is delivered to a LookupIP callback.
type IPEvent struct {
	Status Status
	IPs    []net.IP
	Err    *ntcerr.Error
}

// HostEvent is delivered to a LookupHost (reverse) callback.
type HostEvent struct {
	Status Status
	Names  []string
	Err    *ntcerr.Error
}

// PortEvent is delivered to a LookupPort callback.
type PortEvent struct {
	Status Status
	Port   int
	Err    *ntcerr.Error
}

// ServiceEvent is delivered to a LookupService callback.
type ServiceEvent struct {
	Status  Status
	Service string
	Err     *ntcerr.Error
}

// Resolver is spec.md §4.6's name/service/port resolution component:
// getIpAddress/getDomainName/getPort/getServiceName/getLocalIpAddress/
// getHostname, realized as LookupIP/LookupHost/LookupPort/LookupService/
// LocalIPAddress/Hostname.
type Resolver struct {
	str       *strand.Strand
	overrides *Overrides
	services  *ServiceTable
	cache     *cache

	client      *dns.Client
	servers     []string
	maxAttempts int
}

// Option configures a Resolver at construction, the functional-options
// pattern grounded on eventloop/options.go and carried throughout this
// module.
type Option func(*Resolver)

// WithOverrides installs a hosts-style override table consulted before
// the cache and the network, spec.md §4.6.
func WithOverrides(o *Overrides) Option { return func(r *Resolver) { r.overrides = o } }

// WithServiceTable installs the service-name/port table.
func WithServiceTable(s *ServiceTable) Option { return func(r *Resolver) { r.services = s } }

// WithServers overrides the DNS server endpoint list (each "host:port"),
// spec.md §4.6's "resolver's list of server endpoints from the system
// configuration". Defaults to parsing /etc/resolv.conf via
// dns.ClientConfigFromFile when omitted.
func WithServers(servers []string) Option { return func(r *Resolver) { r.servers = servers } }

// WithMaxAttempts bounds the retry-with-backoff attempt ceiling,
// spec.md §4.6.
func WithMaxAttempts(n int) Option { return func(r *Resolver) { r.maxAttempts = n } }

// WithCacheLimits bounds the resolver's LRU cache by entry count and
// total byte size, spec.md's cache-entry invariant.
func WithCacheLimits(maxEntries, maxBytes int) Option {
	return func(r *Resolver) { r.cache = newCache(maxEntries, maxBytes) }
}

// New creates a Resolver whose callbacks are dispatched on str.
func New(str *strand.Strand, opts ...Option) *Resolver {
	r := &Resolver{
		str:         str,
		overrides:   NewOverrides(),
		services:    NewServiceTable(),
		cache:       newCache(4096, 1<<20),
		client:      &dns.Client{},
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.servers == nil {
		if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
			for _, s := range cfg.Servers {
				r.servers = append(r.servers, net.JoinHostPort(s, cfg.Port))
			}
		}
	}
	return r
}

func (r *Resolver) dispatchIP(cb func(IPEvent), ev IPEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: r.str}.Dispatch(r.str, false)
}

func (r *Resolver) dispatchHost(cb func(HostEvent), ev HostEvent) {
	if cb == nil {
		return
	}
	callback.Callback{Fn: func() { cb(ev) }, Strand: r.str}.Dispatch(r.str, false)
}

// LookupIP resolves name to its IP address list, spec.md §4.6's
// getIpAddress: overrides first (authoritative, bypassing cache and
// network), then the cache, then an iterative DNS query.
func (r *Resolver) LookupIP(name string, opts Options, cb func(IPEvent)) {
	ascii, err := idna.ToASCII(name)
	if err != nil {
		ascii = name
	}

	if ips, ok := r.overrides.Lookup(ascii); ok {
		r.dispatchIP(cb, IPEvent{Status: Complete, IPs: ips})
		return
	}
	if ips, ok := r.cache.getIPs(ascii); ok {
		r.dispatchIP(cb, IPEvent{Status: Complete, IPs: ips})
		return
	}

	go func() {
		ips, ttl, err := r.exchangeA(ascii, opts)
		if opts.Token.Aborted() {
			r.dispatchIP(cb, IPEvent{Status: Canceled, Err: cancelErr("lookupIP")})
			return
		}
		if err != nil {
			r.dispatchIP(cb, IPEvent{Status: Error, Err: err})
			return
		}
		r.cache.putIPs(ascii, ips, ttl)
		r.dispatchIP(cb, IPEvent{Status: Complete, IPs: ips})
	}()
}

// LookupHost resolves ip to its domain name list (PTR), spec.md §4.6's
// getDomainName, symmetric to LookupIP.
func (r *Resolver) LookupHost(ip net.IP, opts Options, cb func(HostEvent)) {
	key := ip.String()
	if names, ok := r.overrides.ReverseLookup(ip); ok {
		r.dispatchHost(cb, HostEvent{Status: Complete, Names: names})
		return
	}
	if names, ok := r.cache.getNames(key); ok {
		r.dispatchHost(cb, HostEvent{Status: Complete, Names: names})
		return
	}

	go func() {
		names, ttl, err := r.exchangePTR(ip, opts)
		if opts.Token.Aborted() {
			r.dispatchHost(cb, HostEvent{Status: Canceled, Err: cancelErr("lookupHost")})
			return
		}
		if err != nil {
			r.dispatchHost(cb, HostEvent{Status: Error, Err: err})
			return
		}
		r.cache.putNames(key, names, ttl)
		r.dispatchHost(cb, HostEvent{Status: Complete, Names: names})
	}()
}

// LookupPort resolves service/proto to its port number, spec.md §4.6's
// getPort, consulting overrides then the system service-name table.
func (r *Resolver) LookupPort(service, proto string, opts Options) PortEvent {
	if port, ok := r.overrides.LookupPort(service, proto); ok {
		return PortEvent{Status: Complete, Port: port}
	}
	if port, ok := r.services.LookupPort(service, proto); ok {
		return PortEvent{Status: Complete, Port: port}
	}
	return PortEvent{Status: Error, Err: ntcerr.New(ntcerr.AddressMalformed, "lookupPort", service)}
}

// LookupService resolves port/proto to its service name, spec.md §4.6's
// getServiceName, the reverse of LookupPort.
func (r *Resolver) LookupService(port int, proto string) ServiceEvent {
	if name, ok := r.services.LookupService(port, proto); ok {
		return ServiceEvent{Status: Complete, Service: name}
	}
	return ServiceEvent{Status: Error, Err: ntcerr.New(ntcerr.AddressMalformed, "lookupService", "")}
}

// LocalIPAddress returns the primary outbound-interface IP address,
// spec.md §4.6's getLocalIpAddress.
func (r *Resolver) LocalIPAddress() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, ntcerr.Wrap(ntcerr.Classify(err), "localIPAddress", "", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

// Hostname returns the local host's configured name, spec.md §4.6's
// getHostname.
func (r *Resolver) Hostname() (string, error) {
	return os.Hostname()
}

func cancelErr(op string) *ntcerr.Error { return ntcerr.New(ntcerr.Cancelled, op, "") }

// exchangeA performs the iterative A query for name (AAAA records in the
// answer are collected too, but no AAAA question is sent), trying each
// configured server over UDP first and falling back to TCP when the
// response is truncated, retrying with exponential backoff up to
// maxAttempts, spec.md §4.6's DNS client behavior.
func (r *Resolver) exchangeA(name string, opts Options) ([]net.IP, time.Duration, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	resp, err := r.exchangeWithRetry(context.Background(), m, opts)
	if err != nil {
		return nil, 0, err
	}

	var ips []net.IP
	var ttl time.Duration
	for _, rr := range resp.Answer {
		switch a := rr.(type) {
		case *dns.A:
			ips = append(ips, a.A)
			ttl = time.Duration(a.Hdr.Ttl) * time.Second
		case *dns.AAAA:
			ips = append(ips, a.AAAA)
			ttl = time.Duration(a.Hdr.Ttl) * time.Second
		}
	}
	if len(ips) == 0 {
		return nil, 0, ntcerr.New(ntcerr.AddressMalformed, "lookupIP", name)
	}
	return ips, ttl, nil
}

// exchangePTR performs the reverse PTR query for ip.
func (r *Resolver) exchangePTR(ip net.IP, opts Options) ([]string, time.Duration, error) {
	rev, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return nil, 0, ntcerr.Wrap(ntcerr.AddressMalformed, "lookupHost", ip.String(), err)
	}
	m := new(dns.Msg)
	m.SetQuestion(rev, dns.TypePTR)
	m.RecursionDesired = true

	resp, err := r.exchangeWithRetry(context.Background(), m, opts)
	if err != nil {
		return nil, 0, err
	}

	var names []string
	var ttl time.Duration
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
			ttl = time.Duration(ptr.Hdr.Ttl) * time.Second
		}
	}
	if len(names) == 0 {
		return nil, 0, ntcerr.New(ntcerr.AddressMalformed, "lookupHost", ip.String())
	}
	return names, ttl, nil
}

// exchangeWithRetry sends m to each configured server in turn, UDP
// first with TCP fallback on truncation, retrying with exponential
// backoff for up to r.maxAttempts rounds, each round trying every server.
func (r *Resolver) exchangeWithRetry(ctx context.Context, m *dns.Msg, opts Options) (*dns.Msg, error) {
	if len(r.servers) == 0 {
		return nil, ntcerr.New(ntcerr.Invalid, "exchange", "no DNS servers configured")
	}

	log := currentLogger()
	var lastErr error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		for _, server := range r.servers {
			if !opts.Deadline.IsZero() && time.Now().After(opts.Deadline) {
				return nil, ntcerr.New(ntcerr.WouldBlock, "exchange", server)
			}
			log.Debug("dnsExchangeStart", slog.String("server", server), slog.Int("attempt", attempt), slog.String("serverProtocol", "udp"))
			resp, _, err := r.client.ExchangeContext(ctx, m, server)
			if err != nil {
				lastErr = ntcerr.Wrap(ntcerr.Classify(err), "exchange", server, err)
				log.Debug("dnsExchangeDone", slog.String("server", server), slog.Any("err", err))
				continue
			}
			if resp.Truncated {
				tcp := &dns.Client{Net: "tcp"}
				log.Debug("dnsExchangeRetry", slog.String("server", server), slog.String("serverProtocol", "tcp"))
				resp, _, err = tcp.ExchangeContext(ctx, m, server)
				if err != nil {
					lastErr = ntcerr.Wrap(ntcerr.Classify(err), "exchange", server, err)
					continue
				}
			}
			if resp.Rcode != dns.RcodeSuccess {
				lastErr = ntcerr.New(ntcerr.AddressMalformed, "exchange", server)
				continue
			}
			log.Debug("dnsExchangeDone", slog.String("server", server), slog.Int("answers", len(resp.Answer)))
			return resp, nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = ntcerr.New(ntcerr.Unknown, "exchange", "")
	}
	return nil, lastErr
}
