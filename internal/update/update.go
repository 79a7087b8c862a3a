// Package update checks a remote manifest for newer firmware releases.
// Installing a release is left to the host's package manager.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// ManifestType identifies manifests published for this device.
const ManifestType = "bytelevel"

// DefaultTimeout bounds a single manifest request.
const DefaultTimeout = 10 * time.Second

// ErrOffline is returned when the station link is down.
var ErrOffline = errors.New("update: not connected")

// Manifest is the document served at the update URL.
type Manifest struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Result is the outcome of the last check.
type Result struct {
	Current   string    `json:"current"`
	Latest    string    `json:"latest,omitempty"`
	URL       string    `json:"url,omitempty"`
	Available bool      `json:"available"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Checker fetches the manifest and remembers the last result.
type Checker struct {
	url       string
	current   string
	client    *http.Client
	connected func() bool
	log       *logger.Logger

	mu   sync.RWMutex
	last Result
}

// NewChecker creates a Checker. connected gates requests; nil means always.
func NewChecker(url, current string, connected func() bool, log *logger.Logger) *Checker {
	if connected == nil {
		connected = func() bool { return true }
	}
	return &Checker{
		url:       url,
		current:   current,
		client:    &http.Client{Timeout: DefaultTimeout},
		connected: connected,
		log:       log,
		last:      Result{Current: current},
	}
}

// Enabled reports whether an update URL is configured.
func (c *Checker) Enabled() bool {
	return c != nil && c.url != ""
}

// Check fetches the manifest once and stores the result.
func (c *Checker) Check(ctx context.Context) (Result, error) {
	res := Result{Current: c.current, CheckedAt: time.Now()}
	m, err := c.fetch(ctx)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Latest = m.Version
		res.URL = m.URL
		res.Available = Newer(m.Version, c.current)
	}

	c.mu.Lock()
	c.last = res
	c.mu.Unlock()

	if err != nil {
		return res, err
	}
	if res.Available {
		c.log.Infow("update_available", "current", c.current, "latest", res.Latest)
	}
	return res, nil
}

func (c *Checker) fetch(ctx context.Context) (Manifest, error) {
	if !c.Enabled() {
		return Manifest{}, errors.New("update: no url configured")
	}
	if !c.connected() {
		return Manifest{}, ErrOffline
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Manifest{}, fmt.Errorf("fetch manifest: status %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Type != ManifestType {
		return Manifest{}, fmt.Errorf("manifest type %q, want %q", m.Type, ManifestType)
	}
	if m.Version == "" {
		return Manifest{}, errors.New("manifest without version")
	}
	return m, nil
}

// Last returns the most recent result.
func (c *Checker) Last() Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Run checks once at start and then every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	if !c.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.Check(ctx); err != nil && !errors.Is(err, ErrOffline) && ctx.Err() == nil {
			c.log.Warnw("update_check_failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Newer reports whether candidate is a higher dotted version than current.
// A leading "v" is ignored. A non-numeric current such as "dev" is older than
// any release.
func Newer(candidate, current string) bool {
	a, okA := parseVersion(candidate)
	b, okB := parseVersion(current)
	if !okA {
		return false
	}
	if !okB {
		return true
	}
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return x > y
		}
	}
	return false
}

func parseVersion(s string) ([]int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
