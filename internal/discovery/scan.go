package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// DefaultScanTimeout bounds Scan when ctx has no deadline.
const DefaultScanTimeout = 5 * time.Second

// Device is a ByteWaterlevel unit found on the network.
type Device struct {
	Name     string
	Hostname string
	IP       string
	Port     int
	Version  string
}

// BaseURL returns the web interface address.
func (d Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.IP, d.Port)
}

// Scan browses for devices until timeout.
func Scan(ctx context.Context, timeout time.Duration) ([]Device, error) {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("create mDNS resolver: %w", err)
	}

	var (
		mu      sync.Mutex
		devices []Device
	)
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if d, ok := parseEntry(entry); ok {
				mu.Lock()
				devices = append(devices, d)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("browse mDNS services: %w", err)
	}
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]Device(nil), devices...), nil
}

// parseEntry keeps only entries carrying DeviceTag with a usable address.
func parseEntry(entry *zeroconf.ServiceEntry) (Device, bool) {
	if entry == nil {
		return Device{}, false
	}

	tagged := false
	d := Device{Name: entry.Instance, Hostname: entry.HostName, Port: entry.Port}
	for _, txt := range entry.Text {
		if txt == DeviceTag {
			tagged = true
			continue
		}
		if v, ok := strings.CutPrefix(txt, "version="); ok {
			d.Version = v
		}
	}
	if !tagged {
		return Device{}, false
	}

	if len(entry.AddrIPv4) > 0 {
		d.IP = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		d.IP = entry.AddrIPv6[0].String()
	}
	if d.IP == "" {
		return Device{}, false
	}
	if d.Port == 0 {
		d.Port = 80
	}
	return d, true
}
