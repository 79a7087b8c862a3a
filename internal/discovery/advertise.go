// Package discovery advertises the device web interface over mDNS and finds
// other ByteWaterlevel devices on the local network.
package discovery

import (
	"context"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

const (
	// ServiceType is advertised for the web interface.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// DeviceTag marks our TXT records so Scan can tell devices apart.
	DeviceTag = "device=bytelevel"
)

// Registration is a live mDNS announcement.
type Registration interface {
	Shutdown()
}

// RegisterFunc publishes a service. zeroconfRegister is the real one.
type RegisterFunc func(instance, service, domain string, port int, txt []string) (Registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string) (Registration, error) {
	server, err := zeroconf.Register(instance, service, domain, port, txt, nil)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Advertiser keeps one announcement alive and re-registers it on request,
// e.g. after the network interfaces changed.
type Advertiser struct {
	instance string
	port     int
	txt      []string
	register RegisterFunc
	log      *logger.Logger

	refresh chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	current Registration
	count   int
}

// NewAdvertiser creates an Advertiser for instance on port. A nil register
// uses zeroconf.
func NewAdvertiser(instance string, port int, version string, register RegisterFunc, log *logger.Logger) *Advertiser {
	if register == nil {
		register = zeroconfRegister
	}
	return &Advertiser{
		instance: instance,
		port:     port,
		txt:      []string{DeviceTag, "version=" + version, "path=/"},
		register: register,
		log:      log,
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run registers the service and serves refresh requests until ctx is done.
func (a *Advertiser) Run(ctx context.Context) {
	defer close(a.done)
	a.announce()
	for {
		select {
		case <-ctx.Done():
			a.withdraw()
			return
		case <-a.refresh:
			a.announce()
		}
	}
}

// Wait blocks until Run has returned.
func (a *Advertiser) Wait() {
	<-a.done
}

// Refresh asks Run to re-register. It never blocks.
func (a *Advertiser) Refresh() {
	select {
	case a.refresh <- struct{}{}:
	default:
	}
}

// Registrations returns how many announcements have been made.
func (a *Advertiser) Registrations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *Advertiser) announce() {
	a.withdraw()
	reg, err := a.register(a.instance, ServiceType, ServiceDomain, a.port, a.txt)
	if err != nil {
		a.log.Warnw("mdns_register_failed", "instance", a.instance, "err", err)
		return
	}
	a.mu.Lock()
	a.current = reg
	a.count++
	a.mu.Unlock()
	a.log.Infow("mdns_registered", "instance", a.instance, "port", a.port)
}

func (a *Advertiser) withdraw() {
	a.mu.Lock()
	reg := a.current
	a.current = nil
	a.mu.Unlock()
	if reg != nil {
		reg.Shutdown()
	}
}
