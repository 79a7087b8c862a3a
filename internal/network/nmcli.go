package network

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// ErrBusy is returned when the radio command queue is full.
var ErrBusy = errors.New("network: radio busy")

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

const (
	apConnectionName    = "bytelevel-ap"
	defaultPollPeriod   = time.Second
	defaultScanPeriod   = 15 * time.Second
	defaultWirelessPath = "/proc/net/wireless"
	commandTimeout      = 30 * time.Second
)

type job struct {
	name string
	args []string
}

// NMRadio drives a Wi-Fi interface through NetworkManager's nmcli.
// Commands run on an owned worker goroutine; link state is polled and cached
// so the queries never block.
type NMRadio struct {
	iface        string
	apIface      string
	run          Runner
	log          *logger.Logger
	poll         time.Duration
	scan         time.Duration
	wirelessPath string

	jobs chan job
	wg   sync.WaitGroup
	stop context.CancelFunc

	// owned by the worker
	scannedAt time.Time

	mu        sync.RWMutex
	connected bool
	rssi      int
	apUp      bool
	ssids     []string
}

// NewNMRadio creates a radio for the station interface iface. The access
// point runs on apIface, or on iface when apIface is empty. Call Start
// before use.
func NewNMRadio(iface, apIface string, run Runner, log *logger.Logger) *NMRadio {
	if run == nil {
		run = ExecRunner
	}
	if apIface == "" {
		apIface = iface
	}
	return &NMRadio{
		iface:        iface,
		apIface:      apIface,
		run:          run,
		log:          log,
		poll:         defaultPollPeriod,
		scan:         defaultScanPeriod,
		wirelessPath: defaultWirelessPath,
		jobs:         make(chan job, 4),
	}
}

// Start launches the worker. It stops when ctx is cancelled or Close is called.
func (r *NMRadio) Start(ctx context.Context) {
	ctx, r.stop = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.worker(ctx)
}

// Close stops the worker and waits for it to exit.
func (r *NMRadio) Close() error {
	if r.stop != nil {
		r.stop()
	}
	r.wg.Wait()
	return nil
}

func (r *NMRadio) worker(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.jobs:
			r.exec(ctx, j)
			r.refresh(ctx)
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *NMRadio) exec(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := r.run(ctx, j.name, j.args...)
	if err != nil {
		r.log.Warnw("nmcli_failed", "args", redact(j.args), "err", err, "output", strings.TrimSpace(string(out)))
		return
	}
	r.log.Debugw("nmcli_ok", "args", redact(j.args))
}

func (r *NMRadio) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	connected := false
	out, err := r.run(ctx, "nmcli", "-t", "-f", "GENERAL.STATE,GENERAL.CONNECTION", "device", "show", r.iface)
	if err == nil {
		connected = parseDeviceShow(out)
	}

	rssi := 0
	if connected {
		if data, err := os.ReadFile(r.wirelessPath); err == nil {
			rssi, _ = parseWireless(data, r.iface)
		}
	}

	apUp := false
	out, err = r.run(ctx, "nmcli", "-t", "-f", "NAME", "connection", "show", "--active")
	if err == nil {
		apUp = parseActive(out, apConnectionName)
	}

	// Scans feed Visible, which only matters while the hotspot holds the
	// station interface.
	var ssids []string
	scanned := false
	if apUp && r.SharedInterface() && time.Since(r.scannedAt) >= r.scan {
		r.scannedAt = time.Now()
		out, err = r.run(ctx, "nmcli", "-t", "-f", "SSID", "device", "wifi", "list", "ifname", r.iface, "--rescan", "auto")
		if err == nil {
			ssids, scanned = parseSSIDs(out), true
		}
	}

	r.mu.Lock()
	r.connected = connected
	r.rssi = rssi
	r.apUp = apUp
	if scanned {
		r.ssids = ssids
	}
	r.mu.Unlock()
}

func (r *NMRadio) enqueue(j job) error {
	select {
	case r.jobs <- j:
		return nil
	default:
		return ErrBusy
	}
}

// Connect queues a station connection.
func (r *NMRadio) Connect(ssid, password string) error {
	args := []string{"--wait", "15", "device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", r.iface)
	return r.enqueue(job{name: "nmcli", args: args})
}

// Connected reports the cached station link state.
func (r *NMRadio) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// SignalStrength returns the cached RSSI in dBm.
func (r *NMRadio) SignalStrength() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rssi
}

// StartAccessPoint queues a hotspot on the access point interface.
func (r *NMRadio) StartAccessPoint(ssid, password string) error {
	args := []string{"device", "wifi", "hotspot", "ifname", r.apIface, "con-name", apConnectionName, "ssid", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	return r.enqueue(job{name: "nmcli", args: args})
}

// StopAccessPoint queues taking the hotspot down.
func (r *NMRadio) StopAccessPoint() error {
	return r.enqueue(job{name: "nmcli", args: []string{"connection", "down", apConnectionName}})
}

// AccessPointUp reports whether the hotspot connection was active at the
// last poll.
func (r *NMRadio) AccessPointUp() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.apUp
}

// SharedInterface reports whether the hotspot runs on the station interface.
func (r *NMRadio) SharedInterface() bool {
	return r.apIface == r.iface
}

// Visible reports whether ssid was in the last scan taken while the hotspot
// was up.
func (r *NMRadio) Visible(ssid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.ssids, ssid)
}

// parseDeviceShow reports whether terse `nmcli device show` output describes
// an activated station connection. The hotspot does not count.
func parseDeviceShow(out []byte) bool {
	var state, conn string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch key {
		case "GENERAL.STATE":
			state = value
		case "GENERAL.CONNECTION":
			conn = value
		}
	}
	return strings.HasPrefix(state, "100") && conn != "" && conn != apConnectionName
}

// parseActive reports whether terse `nmcli -f NAME connection show --active`
// output lists the connection name.
func parseActive(out []byte, name string) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if unescape(sc.Text()) == name {
			return true
		}
	}
	return false
}

// parseSSIDs returns the named networks in terse `nmcli -f SSID device wifi
// list` output.
func parseSSIDs(out []byte) []string {
	var ssids []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		ssid := unescape(sc.Text())
		if ssid == "" || ssid == "--" || slices.Contains(ssids, ssid) {
			continue
		}
		ssids = append(ssids, ssid)
	}
	return ssids
}

// unescape undoes nmcli's terse-mode escaping of colons and backslashes.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\\`, `\`, `\:`, ":").Replace(s)
}

// parseWireless extracts the signal level in dBm for iface from
// /proc/net/wireless.
func parseWireless(data []byte, iface string) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || strings.TrimSuffix(fields[0], ":") != iface || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[3], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("parse level %q: %w", fields[3], err)
		}
		return int(level), nil
	}
	return 0, fmt.Errorf("interface %s not found", iface)
}

func redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "password" {
			out[i+1] = "***"
		}
	}
	return out
}
