// Package proxy parses and rotates egress proxy configurations.
package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ErrEmptyPool indicates pool construction from an empty proxy list.
var ErrEmptyPool = errors.New("proxy pool requires at least one proxy")

// supported proxy schemes and their default ports.
var defaultPorts = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// Config is one parsed egress proxy.
type Config struct {
	Scheme   string `json:"scheme"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Address returns host:port.
func (c Config) Address() string {
	return c.Host + ":" + c.Port
}

// URL renders the config back into scheme://[user:pass@]host:port form,
// suitable for browser and HTTP client proxy settings.
func (c Config) URL() string {
	u := url.URL{Scheme: c.Scheme, Host: c.Address()}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	return u.String()
}

// ParseConfig parses a proxy string of the form
// [scheme://][user:pass@]host:port. A missing scheme defaults to http; a
// missing port defaults per scheme (80/443/1080). Credentials are
// percent-decoded. Empty input and unsupported schemes fail fast.
func ParseConfig(raw string) (Config, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Config{}, errors.New("parse proxy: empty string")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse proxy %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	defaultPort, ok := defaultPorts[scheme]
	if !ok {
		return Config{}, fmt.Errorf("parse proxy %q: unsupported scheme %q (want http, https, or socks5)", raw, u.Scheme)
	}
	if u.Hostname() == "" {
		return Config{}, fmt.Errorf("parse proxy %q: missing host", raw)
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	cfg := Config{
		Scheme: scheme,
		Host:   u.Hostname(),
		Port:   port,
	}
	if u.User != nil {
		// url.Parse already percent-decodes userinfo.
		cfg.Username = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}

// Normalize parses one-or-many proxy strings into configs, preserving order.
func Normalize(input ...string) ([]Config, error) {
	configs := make([]Config, 0, len(input))
	for _, raw := range input {
		cfg, err := ParseConfig(raw)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Pool rotates over a fixed, ordered list of proxy configs. The rotation
// cursor is shared mutable state; each draw is atomic with respect to the
// read-then-advance step.
type Pool struct {
	mu      sync.Mutex
	configs []Config
	cursor  int
}

// NewPool constructs a Pool from one-or-many proxy strings. Construction
// fails when the resulting list is empty.
func NewPool(input ...string) (*Pool, error) {
	configs, err := Normalize(input...)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, ErrEmptyPool
	}
	return &Pool{configs: configs}, nil
}

// Next returns the config at the current cursor and advances it, wrapping
// modulo the pool size. Classic round-robin: no weighting, no health tracking.
func (p *Pool) Next() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := p.configs[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.configs)
	return cfg
}

// Reset rewinds the cursor so the next draw returns the first configured
// proxy. The orchestrator calls this before a fresh attempt cycle so retries
// begin deterministically.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
}

// Snapshot returns the full rotation as an ordered list starting at the
// current cursor, then advances the cursor by one. Each caller gets a pinned
// deterministic retry order while successive callers start one proxy apart.
func (p *Pool) Snapshot() []Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Config, 0, len(p.configs))
	for i := range p.configs {
		out = append(out, p.configs[(p.cursor+i)%len(p.configs)])
	}
	p.cursor = (p.cursor + 1) % len(p.configs)
	return out
}

// Size reports the number of configured proxies.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.configs)
}
