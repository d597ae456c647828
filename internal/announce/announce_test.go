package announce

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okkerse/fieldlink/internal/radio"
	"github.com/okkerse/fieldlink/internal/signal"
	"github.com/okkerse/fieldlink/internal/unitcfg"
	"github.com/okkerse/fieldlink/internal/wifi"
)

func TestTxtRecords(t *testing.T) {
	got := txtRecords("pump-house", "ap", "v1.2.3", "boot-id")
	want := []string{"unit=pump-house", "mode=ap", "ver=v1.2.3", "id=boot-id"}
	if len(got) != len(want) {
		t.Fatalf("txtRecords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("txtRecords()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInstanceName(t *testing.T) {
	tests := []struct {
		name   string
		unit   string
		bootID string
		want   string
	}{
		{"long id truncated", "pump-house", "0123456789abcdef", "pump-house-01234567"},
		{"short id kept", "pump-house", "abc", "pump-house-abc"},
		{"empty unit falls back", "", "0123456789abcdef", "fieldlink-01234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := instanceName(tt.unit, tt.bootID); got != tt.want {
				t.Errorf("instanceName(%q, %q) = %q, want %q", tt.unit, tt.bootID, got, tt.want)
			}
		})
	}
}

func TestReachable(t *testing.T) {
	tests := []struct {
		name  string
		state signal.Flags
		want  bool
	}{
		{"none", wifi.StateNone, false},
		{"station without address", wifi.StateSTA, false},
		{"station with address", wifi.StateSTA | wifi.StateSTAGotIP, true},
		{"access point", wifi.StateAP, true},
		{"ap plus station", wifi.StateAPSTA, true},
		{"ap plus station with address", wifi.StateAPSTA | wifi.StateSTAGotIP, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reachable(tt.state); got != tt.want {
				t.Errorf("reachable(%s) = %v, want %v", wifi.StateName(tt.state), got, tt.want)
			}
		})
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Service != ServiceType {
		t.Errorf("Service = %q, want %q", s.Service, ServiceType)
	}
	if s.Domain != ServiceDomain {
		t.Errorf("Domain = %q, want %q", s.Domain, ServiceDomain)
	}
	if s.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", s.Port, DefaultPort)
	}
}

type registration struct {
	instance string
	service  string
	domain   string
	port     int
	text     []string
}

type fakeHandle struct {
	mu        sync.Mutex
	texts     [][]string
	shutdowns int
}

func (h *fakeHandle) SetText(text []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.texts = append(h.texts, append([]string(nil), text...))
}

func (h *fakeHandle) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdowns++
}

func (h *fakeHandle) shutdownCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdowns
}

func (h *fakeHandle) textCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.texts)
}

func (h *fakeHandle) lastText() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.texts) == 0 {
		return nil
	}
	return h.texts[len(h.texts)-1]
}

type fakeRegistrar struct {
	mu       sync.Mutex
	calls    []registration
	handles  []*fakeHandle
	failures int
}

func (f *fakeRegistrar) register(instance, service, domain string, port int, text []string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("mdns socket unavailable")
	}
	f.calls = append(f.calls, registration{
		instance: instance,
		service:  service,
		domain:   domain,
		port:     port,
		text:     append([]string(nil), text...),
	})
	h := &fakeHandle{}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeRegistrar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRegistrar) call(i int) registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeRegistrar) handle(i int) *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[i]
}

func (f *fakeRegistrar) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestRig(t *testing.T) (*Announcer, *fakeRegistrar, *wifi.Manager, *radio.Sim) {
	t.Helper()
	sim := radio.NewSim()
	store := unitcfg.NewStore()
	cfg := store.Acquire()
	cfg.User.UnitName = "pump-house"
	store.Release()

	wm, err := wifi.New(store, sim, wifi.DefaultSettings())
	if err != nil {
		t.Fatalf("wifi.New() error = %v", err)
	}
	t.Cleanup(wm.Close)

	a := New(wm, store, DefaultSettings())
	reg := &fakeRegistrar{}
	a.Register = reg.register
	return a, reg, wm, sim
}

func TestAnnounceFollowsConnectivity(t *testing.T) {
	a, reg, wm, _ := newTestRig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	if err := wm.RequestState(wifi.RequestAP); err != nil {
		t.Fatalf("RequestState(ap) error = %v", err)
	}
	waitFor(t, "registration", func() bool { return reg.count() == 1 })

	call := reg.call(0)
	if call.service != ServiceType {
		t.Errorf("registered service %q, want %q", call.service, ServiceType)
	}
	if call.domain != ServiceDomain {
		t.Errorf("registered domain %q, want %q", call.domain, ServiceDomain)
	}
	if call.port != DefaultPort {
		t.Errorf("registered port %d, want %d", call.port, DefaultPort)
	}
	wantInstance := "pump-house-" + a.BootID()[:8]
	if call.instance != wantInstance {
		t.Errorf("registered instance %q, want %q", call.instance, wantInstance)
	}
	assertTxt(t, call.text, "unit", "pump-house")
	assertTxt(t, call.text, "mode", "ap")
	assertTxt(t, call.text, "id", a.BootID())

	if err := wm.RequestState(wifi.RequestNone); err != nil {
		t.Fatalf("RequestState(none) error = %v", err)
	}
	waitFor(t, "withdrawal", func() bool { return reg.handle(0).shutdownCount() == 1 })

	if err := wm.RequestState(wifi.RequestAP); err != nil {
		t.Fatalf("RequestState(ap) error = %v", err)
	}
	waitFor(t, "re-registration", func() bool { return reg.count() == 2 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if got := reg.handle(1).shutdownCount(); got != 1 {
		t.Fatalf("final shutdown count = %d, want 1", got)
	}
}

func TestAnnounceRefreshesModeInPlace(t *testing.T) {
	sim := radio.NewSim()
	store := unitcfg.NewStore()
	cfg := store.Acquire()
	cfg.User.UnitName = "pump-house"
	cfg.Connectivity.Networks = []unitcfg.Network{{SSID: "barn-north", Password: "hay-loft-2024"}}
	store.Release()

	settings := wifi.DefaultSettings()
	settings.MaxRetries = 10
	settings.RetryDelay = 20 * time.Millisecond
	wm, err := wifi.New(store, sim, settings)
	if err != nil {
		t.Fatalf("wifi.New() error = %v", err)
	}
	t.Cleanup(wm.Close)

	a := New(wm, store, DefaultSettings())
	reg := &fakeRegistrar{}
	a.Register = reg.register

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// AP+STA is reachable the moment the access point is up. The
	// configured network is not in range yet, so the advertisement goes
	// out before any address exists.
	if err := wm.RequestState(wifi.RequestAPSTA); err != nil {
		t.Fatalf("RequestState(ap+sta) error = %v", err)
	}
	waitFor(t, "registration", func() bool { return reg.count() == 1 })
	assertTxt(t, reg.call(0).text, "mode", "ap+sta")

	// Bring the network into range; a rescan finds it and the acquired
	// address arrives as a TXT refresh on the live handle.
	sim.AddStation(radio.Station{SSID: "barn-north", Password: "hay-loft-2024", RSSI: -52})
	waitFor(t, "txt refresh", func() bool { return reg.handle(0).textCount() > 0 })

	if got := reg.count(); got != 1 {
		t.Fatalf("registered %d times, want 1 (refresh must reuse the handle)", got)
	}
	if mode := txtValue(reg.handle(0).lastText(), "mode"); !strings.Contains(mode, "sta+ip") {
		t.Fatalf("refreshed mode = %q, want it to include sta+ip", mode)
	}

	cancel()
	<-done
}

func TestAnnounceRetriesFailedRegistration(t *testing.T) {
	a, reg, wm, _ := newTestRig(t)
	a.settings.RetryDelay = 5 * time.Millisecond
	reg.failNext(2)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	if err := wm.RequestState(wifi.RequestAP); err != nil {
		t.Fatalf("RequestState(ap) error = %v", err)
	}
	waitFor(t, "registration after retries", func() bool { return reg.count() == 1 })

	cancel()
	<-done
}

// txtValue extracts the value for key from "key=value" TXT records.
func txtValue(text []string, key string) string {
	prefix := key + "="
	for _, record := range text {
		if strings.HasPrefix(record, prefix) {
			return strings.TrimPrefix(record, prefix)
		}
	}
	return ""
}

// assertTxt checks that TXT records carry key with the wanted value.
func assertTxt(t *testing.T, text []string, key, want string) {
	t.Helper()
	prefix := key + "="
	for _, record := range text {
		if strings.HasPrefix(record, prefix) {
			if got := strings.TrimPrefix(record, prefix); got != want {
				t.Errorf("txt %s = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("txt records %v missing key %q", text, key)
}
