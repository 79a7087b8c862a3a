package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Gamer08YT/ByteWaterlevel/internal/control"
	"github.com/Gamer08YT/ByteWaterlevel/internal/journal"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
	"github.com/Gamer08YT/ByteWaterlevel/internal/sensor"
	"github.com/Gamer08YT/ByteWaterlevel/internal/status"
	"github.com/Gamer08YT/ByteWaterlevel/internal/update"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type relayCall struct {
	id int
	on bool
	d  time.Duration
}

type fakeRelays struct {
	mu    sync.Mutex
	calls []relayCall
	err   error
}

func (f *fakeRelays) SetRelay(_ context.Context, id int, on bool, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, relayCall{id, on, d})
	return nil
}

func (f *fakeRelays) Calls() []relayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relayCall(nil), f.calls...)
}

type fakeEvents struct {
	mu      sync.Mutex
	entries []journal.Entry
	last    journal.Filter
	err     error
}

func (f *fakeEvents) List(_ context.Context, flt journal.Filter) ([]journal.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = flt
	return f.entries, f.err
}

func (f *fakeEvents) Last() journal.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeUpdates struct{ res update.Result }

func (f fakeUpdates) Last() update.Result { return f.res }

func newTestServer(t *testing.T, deps Deps) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Name:         "BYTELEVEL",
		Version:      "1.2.0",
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddress:  ":80",
		TankCapacity: 1000,
		ScanMs:       1000,
	}
	tr := status.NewTracker(start, cfg)
	deps.Tracker = tr
	if deps.Relays == nil {
		deps.Relays = &fakeRelays{}
	}
	srv := New(":0", deps, logger.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func sampleTick() status.Tick {
	return status.Tick{
		Sensor: sensor.Reading{Voltage: 1.8, Level: 50, Volume: 500, Current: 12, Temperature: 41.5, UpdatedAt: 2 * time.Second, Valid: true},
		Relays: [2]status.RelayInfo{
			{Channel: 1, On: true, Remaining: 3 * time.Second},
			{Channel: 2},
		},
		Network:    status.NetworkInfo{State: "STATION_CONNECTED", Connected: true, RSSI: -55, SSID: "home"},
		Automation: status.AutomationInfo{Mode: "FILL_AND_PUMP", Filling: true, MaxLevel: 90, MinLevel: 20, Fill: 40},
	}
}

func postJSON(t *testing.T, url, body string, auth bool, pass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.SetBasicAuth(AdminUser, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, Deps{})
	tr.Update(sampleTick())
	tr.SetMQTTConnected(true)
	tr.SetJournalDropped(2)
	tr.SetMQTTDropped(5)

	for _, path := range []string{"/index.json", "/api/status"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		var sj status.StatusJSON
		if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		resp.Body.Close()

		if sj.Status.Sensor.Level != 50 {
			t.Errorf("level: got %v, want 50", sj.Status.Sensor.Level)
		}
		if len(sj.Status.Relays) != 2 || !sj.Status.Relays[0].State || sj.Status.Relays[0].RemainingMs != 3000 {
			t.Errorf("relays: got %+v", sj.Status.Relays)
		}
		if !sj.Status.MQTT.Connected {
			t.Error("expected mqtt connected")
		}
		if sj.Status.JournalDropped != 2 || sj.Status.MQTTDropped != 5 {
			t.Errorf("dropped: journal %d mqtt %d, want 2 and 5", sj.Status.JournalDropped, sj.Status.MQTTDropped)
		}
		if sj.Status.Automation.Mode != "FILL_AND_PUMP" {
			t.Errorf("mode: got %q", sj.Status.Automation.Mode)
		}
	}
}

func TestIndexHTML(t *testing.T) {
	ts, tr := newTestServer(t, Deps{})
	tr.Update(sampleTick())

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status: got %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		html := string(body)
		for _, want := range []string{"BYTELEVEL", "50.0 %", "500.0 l", "STATION_CONNECTED", "FILL_AND_PUMP", "3000 ms left", "/ws"} {
			if !strings.Contains(html, want) {
				t.Errorf("%s: missing %q", path, want)
			}
		}
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, Deps{})
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestGetRelay(t *testing.T) {
	ts, tr := newTestServer(t, Deps{})
	tr.Update(sampleTick())

	tests := []struct {
		path   string
		code   int
		state  bool
		remain int64
	}{
		{"/api/relay/1", http.StatusOK, true, 3000},
		{"/api/relay/2", http.StatusOK, false, 0},
		{"/api/relay/0", http.StatusBadRequest, false, 0},
		{"/api/relay/3", http.StatusBadRequest, false, 0},
		{"/api/relay/x", http.StatusBadRequest, false, 0},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		var got relayResponse
		_ = json.NewDecoder(resp.Body).Decode(&got)
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("%s: status %d, want %d", tt.path, resp.StatusCode, tt.code)
			continue
		}
		if tt.code == http.StatusOK && (got.State != tt.state || got.RemainingMs != tt.remain) {
			t.Errorf("%s: got %+v", tt.path, got)
		}
	}
}

func TestSetRelay(t *testing.T) {
	relays := &fakeRelays{}
	ts, _ := newTestServer(t, Deps{Relays: relays})

	resp := postJSON(t, ts.URL+"/api/relay/1", `{"state":true,"duration_ms":5000}`, false, "")
	var got relayResponse
	_ = json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if got.Channel != 1 || !got.State || got.RemainingMs != 5000 {
		t.Errorf("response: %+v", got)
	}

	// Duration is ignored when switching off.
	resp = postJSON(t, ts.URL+"/api/relay/2", `{"state":false,"duration_ms":5000}`, false, "")
	resp.Body.Close()

	want := []relayCall{{1, true, 5 * time.Second}, {2, false, 0}}
	calls := relays.Calls()
	if len(calls) != len(want) {
		t.Fatalf("calls: got %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: got %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestSetRelayBadRequests(t *testing.T) {
	relays := &fakeRelays{}
	ts, _ := newTestServer(t, Deps{Relays: relays})

	tests := []struct {
		name, path, body string
	}{
		{"bad channel", "/api/relay/5", `{"state":true}`},
		{"missing state", "/api/relay/1", `{"duration_ms":100}`},
		{"not json", "/api/relay/1", `on`},
		{"negative duration", "/api/relay/1", `{"state":true,"duration_ms":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+tt.path, tt.body, false, "")
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", resp.StatusCode)
			}
		})
	}
	if calls := relays.Calls(); len(calls) != 0 {
		t.Errorf("expected no relay calls, got %+v", calls)
	}
}

func TestSetRelayErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{control.ErrStopped, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("gpio write failed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		ts, _ := newTestServer(t, Deps{Relays: &fakeRelays{err: tt.err}})
		resp := postJSON(t, ts.URL+"/api/relay/1", `{"state":true}`, false, "")
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("%v: status %d, want %d", tt.err, resp.StatusCode, tt.code)
		}
	}
}

func TestSetRelayRequiresAdmin(t *testing.T) {
	relays := &fakeRelays{}
	ts, _ := newTestServer(t, Deps{Relays: relays, Admin: true, Password: "secret123"})

	resp := postJSON(t, ts.URL+"/api/relay/1", `{"state":true}`, false, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no auth: got %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	resp = postJSON(t, ts.URL+"/api/relay/1", `{"state":true}`, true, "wrong")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/relay/1", `{"state":true}`, true, "secret123")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid auth: got %d, want 200", resp.StatusCode)
	}
	if calls := relays.Calls(); len(calls) != 1 {
		t.Errorf("calls: got %d, want 1", len(calls))
	}

	// Reads stay open.
	get, err := http.Get(ts.URL + "/api/relay/1")
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("GET relay: got %d", get.StatusCode)
	}
}

func TestEvents(t *testing.T) {
	events := &fakeEvents{entries: []journal.Entry{
		{ID: "a", Type: journal.TypeRelay, Message: "channel 1 on"},
	}}
	ts, _ := newTestServer(t, Deps{Events: events})

	resp, err := http.Get(ts.URL + "/api/events?type=RELAY&limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var body struct {
		Events []journal.Entry `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Events) != 1 || body.Events[0].Message != "channel 1 on" {
		t.Errorf("events: got %+v", body.Events)
	}
	if last := events.Last(); last.Type != "RELAY" || last.Limit != 5 {
		t.Errorf("filter: got %+v", last)
	}
}

func TestEventsFailure(t *testing.T) {
	ts, _ := newTestServer(t, Deps{Events: &fakeEvents{err: errors.New("disk")}})
	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
}

func TestDisabledFeatures(t *testing.T) {
	ts, _ := newTestServer(t, Deps{})
	for _, path := range []string{"/api/events", "/api/update"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestUpdateEndpoint(t *testing.T) {
	res := update.Result{Current: "1.0.0", Latest: "1.1.0", Available: true}
	ts, _ := newTestServer(t, Deps{Updates: fakeUpdates{res}})
	resp, err := http.Get(ts.URL + "/api/update")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got update.Result
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !got.Available || got.Latest != "1.1.0" {
		t.Errorf("got %+v", got)
	}
}

func TestWebsocketStream(t *testing.T) {
	ts, tr := newTestServer(t, Deps{})
	tr.Update(sampleTick())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?interval_ms=50"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if env.Type != "state" {
			t.Errorf("type: got %q", env.Type)
		}
		if env.Data.Status.Sensor.Level != 50 {
			t.Errorf("level: got %v", env.Data.Status.Sensor.Level)
		}
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		query string
		want  time.Duration
	}{
		{"", time.Second},
		{"interval=2s", 2 * time.Second},
		{"interval=1m", time.Second},
		{"interval=-1s", time.Second},
		{"interval_ms=250", 250 * time.Millisecond},
		{"interval_ms=0", time.Second},
		{"interval_ms=20000", time.Second},
		{"interval=bogus&interval_ms=500", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ws?"+tt.query, nil)
		if got := parseInterval(c); got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.query, got, tt.want)
		}
	}
}
