package resolver

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/bloomberg/ntf-core-sub027/strand"
)

func TestLookupIPOverrideBypassesCacheAndNetwork(t *testing.T) {
	str := strand.New()
	overrides := NewOverrides()
	overrides.Set("svc.internal", net.ParseIP("10.1.1.1"))

	r := New(str, WithOverrides(overrides), WithServers([]string{"127.0.0.1:1"}))

	done := make(chan IPEvent, 1)
	r.LookupIP("svc.internal", Options{}, func(ev IPEvent) { done <- ev })

	select {
	case ev := <-done:
		require.Equal(t, Complete, ev.Status)
		require.Len(t, ev.IPs, 1)
		require.True(t, ev.IPs[0].Equal(net.ParseIP("10.1.1.1")))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for override lookup")
	}
}

func TestLookupIPCacheHitFastPath(t *testing.T) {
	str := strand.New()
	r := New(str, WithServers([]string{"127.0.0.1:1"}))
	r.cache.putIPs("cached.example", []net.IP{net.ParseIP("9.9.9.9")}, time.Minute)

	done := make(chan IPEvent, 1)
	r.LookupIP("cached.example", Options{}, func(ev IPEvent) { done <- ev })

	select {
	case ev := <-done:
		require.Equal(t, Complete, ev.Status)
		require.True(t, ev.IPs[0].Equal(net.ParseIP("9.9.9.9")))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cache-hit lookup")
	}
}

func TestLookupHostOverride(t *testing.T) {
	str := strand.New()
	overrides := NewOverrides()
	ip := net.ParseIP("10.1.1.2")
	overrides.Set("rev.internal", ip)

	r := New(str, WithOverrides(overrides), WithServers([]string{"127.0.0.1:1"}))

	done := make(chan HostEvent, 1)
	r.LookupHost(ip, Options{}, func(ev HostEvent) { done <- ev })

	select {
	case ev := <-done:
		require.Equal(t, Complete, ev.Status)
		require.Contains(t, ev.Names, "rev.internal")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reverse override lookup")
	}
}

func TestLookupPortAndLookupService(t *testing.T) {
	str := strand.New()
	services := NewServiceTable()
	services.Set("widget", "tcp", 6000)
	r := New(str, WithServiceTable(services), WithServers([]string{"127.0.0.1:1"}))

	ev := r.LookupPort("widget", "tcp", Options{})
	require.Equal(t, Complete, ev.Status)
	require.Equal(t, 6000, ev.Port)

	se := r.LookupService(6000, "tcp")
	require.Equal(t, Complete, se.Status)
	require.Equal(t, "widget", se.Service)

	missing := r.LookupPort("nonexistent", "tcp", Options{})
	require.Equal(t, Error, missing.Status)
}

func TestHostnameReturnsOSHostname(t *testing.T) {
	str := strand.New()
	r := New(str, WithServers([]string{"127.0.0.1:1"}))

	name, err := r.Hostname()
	require.NoError(t, err)
	require.NotEmpty(t, name)
}

// startTestDNSServer runs a miekg/dns server over a loopback UDP socket that
// answers every A query for "ok.test." with a fixed address, matching the
// self-hosted test server pattern the dns package's own test suite uses.
func startTestDNSServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc("ok.test.", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: "ok.test.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.ParseIP("203.0.113.7"),
		})
		_ = w.WriteMsg(m)
	})

	srv := &dns.Server{PacketConn: pc, Handler: mux}
	ready := make(chan error, 1)
	srv.NotifyStartedFunc = func() { ready <- nil }
	go func() { _ = srv.ActivateAndServe() }()

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for test DNS server to start")
	}

	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestLookupIPLiveExchangeAgainstSelfHostedServer(t *testing.T) {
	addr := startTestDNSServer(t)
	str := strand.New()
	r := New(str, WithServers([]string{addr}))

	done := make(chan IPEvent, 1)
	r.LookupIP("ok.test", Options{Deadline: time.Now().Add(2 * time.Second)}, func(ev IPEvent) { done <- ev })

	select {
	case ev := <-done:
		require.Equal(t, Complete, ev.Status)
		require.Len(t, ev.IPs, 1)
		require.True(t, ev.IPs[0].Equal(net.ParseIP("203.0.113.7")))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for live DNS exchange")
	}
}

func TestLookupIPUnknownNameReturnsError(t *testing.T) {
	addr := startTestDNSServer(t)
	str := strand.New()
	r := New(str, WithServers([]string{addr}), WithMaxAttempts(1))

	done := make(chan IPEvent, 1)
	r.LookupIP("missing.test", Options{Deadline: time.Now().Add(2 * time.Second)}, func(ev IPEvent) { done <- ev })

	select {
	case ev := <-done:
		require.Equal(t, Error, ev.Status)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for negative DNS exchange")
	}
}
