package resolver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheGetPutRoundTrip(t *testing.T) {
	c := newCache(8, 1<<16)
	ips := []net.IP{net.ParseIP("1.2.3.4")}
	c.putIPs("example.com", ips, time.Minute)

	got, ok := c.getIPs("example.com")
	require.True(t, ok)
	require.Len(t, got, 1)
	require.True(t, got[0].Equal(ips[0]))
}

func TestCacheMissReturnsFalse(t *testing.T) {
	c := newCache(8, 1<<16)
	_, ok := c.getIPs("absent.example")
	require.False(t, ok)
}

func TestCacheExpiryEvictsOnGet(t *testing.T) {
	c := newCache(8, 1<<16)
	c.putIPs("short.example", []net.IP{net.ParseIP("5.6.7.8")}, time.Nanosecond)

	time.Sleep(time.Millisecond)

	_, ok := c.getIPs("short.example")
	require.False(t, ok)

	c.mu.Lock()
	_, stillPresent := c.items["short.example"]
	c.mu.Unlock()
	require.False(t, stillPresent)
}

func TestCacheEvictsByEntryCount(t *testing.T) {
	c := newCache(2, 1<<20)
	c.putIPs("a.example", []net.IP{net.ParseIP("1.1.1.1")}, time.Minute)
	c.putIPs("b.example", []net.IP{net.ParseIP("2.2.2.2")}, time.Minute)
	c.putIPs("c.example", []net.IP{net.ParseIP("3.3.3.3")}, time.Minute)

	_, ok := c.getIPs("a.example")
	require.False(t, ok, "oldest entry should have been evicted once the count ceiling was exceeded")

	_, ok = c.getIPs("b.example")
	require.True(t, ok)
	_, ok = c.getIPs("c.example")
	require.True(t, ok)
}

func TestCacheEvictsByByteSize(t *testing.T) {
	// Each entry costs 25 bytes (9-byte key + 16-byte IP), so a 32-byte
	// budget holds exactly one.
	c := newCache(100, 32)
	c.putIPs("a.example", []net.IP{net.ParseIP("1.1.1.1")}, time.Minute)
	c.putIPs("b.example", []net.IP{net.ParseIP("2.2.2.2")}, time.Minute)

	c.mu.Lock()
	n := c.ll.Len()
	c.mu.Unlock()
	require.Equal(t, 1, n, "a byte budget that fits one entry should retain only the most recently inserted entry")
}

func TestCacheMoveToFrontOnHitProtectsFromEviction(t *testing.T) {
	c := newCache(2, 1<<20)
	c.putIPs("a.example", []net.IP{net.ParseIP("1.1.1.1")}, time.Minute)
	c.putIPs("b.example", []net.IP{net.ParseIP("2.2.2.2")}, time.Minute)

	_, ok := c.getIPs("a.example")
	require.True(t, ok)

	c.putIPs("c.example", []net.IP{net.ParseIP("3.3.3.3")}, time.Minute)

	_, ok = c.getIPs("b.example")
	require.False(t, ok, "b.example was least recently used after a.example's hit, so should be evicted")
	_, ok = c.getIPs("a.example")
	require.True(t, ok)
}

func TestCacheNameRoundTrip(t *testing.T) {
	c := newCache(8, 1<<16)
	c.putNames("1.2.3.4", []string{"host.example"}, time.Minute)

	got, ok := c.getNames("1.2.3.4")
	require.True(t, ok)
	require.Equal(t, []string{"host.example"}, got)
}
