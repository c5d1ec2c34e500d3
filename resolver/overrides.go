package resolver

import (
	"bufio"
	"net"
	"os"
	"strings"
	"sync"
)

// Overrides is the authoritative hosts-file-style override table from
// spec.md §4.6: "Overrides are authoritative: an overridden answer
// bypasses cache and network." Supplements spec.md's abstract "overrides
// database" with the concrete hosts(5) format, matching the original
// ntcdns group's behavior (original_source).
type Overrides struct {
	mu      sync.RWMutex
	forward map[string][]net.IP
	reverse map[string][]string
	ports   map[string]int // "service/proto" -> port
}

// NewOverrides creates an empty Overrides table.
func NewOverrides() *Overrides {
	return &Overrides{
		forward: make(map[string][]net.IP),
		reverse: make(map[string][]string),
		ports:   make(map[string]int),
	}
}

// Set records name -> ips (and the reverse entries), overriding any
// prior mapping for name.
func (o *Overrides) Set(name string, ips ...net.IP) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.forward[name] = ips
	for _, ip := range ips {
		key := ip.String()
		o.reverse[key] = append(o.reverse[key], name)
	}
}

// SetPort records an override for service/proto -> port.
func (o *Overrides) SetPort(service, proto string, port int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ports[service+"/"+proto] = port
}

// Lookup returns the overridden IP list for name, if any.
func (o *Overrides) Lookup(name string) ([]net.IP, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ips, ok := o.forward[name]
	return ips, ok
}

// ReverseLookup returns the overridden domain name list for ip, if any.
func (o *Overrides) ReverseLookup(ip net.IP) ([]string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names, ok := o.reverse[ip.String()]
	return names, ok
}

// LookupPort returns the overridden port for service/proto, if any.
func (o *Overrides) LookupPort(service, proto string) (int, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	port, ok := o.ports[service+"/"+proto]
	return port, ok
}

// LoadHostsFile parses a hosts(5)-format file at path, merging its
// entries into the table: each non-comment, non-blank line is
// "ip canonical-name [alias...]".
func (o *Overrides) LoadHostsFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if hash := strings.IndexByte(line, '#'); hash >= 0 {
			line = line[:hash]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		ip := net.ParseIP(fields[0])
		if ip == nil {
			continue
		}
		for _, name := range fields[1:] {
			o.Set(strings.ToLower(name), ip)
		}
	}
	return sc.Err()
}
