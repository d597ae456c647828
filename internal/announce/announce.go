package announce

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/okkerse/fieldlink/internal/logging"
	"github.com/okkerse/fieldlink/internal/signal"
	"github.com/okkerse/fieldlink/internal/unitcfg"
	"github.com/okkerse/fieldlink/internal/version"
	"github.com/okkerse/fieldlink/internal/wifi"
)

const (
	// ServiceType is the mDNS service type fieldlink units advertise as.
	ServiceType = "_fieldlink._tcp"

	// ServiceDomain is the mDNS domain (typically "local.").
	ServiceDomain = "local."

	// DefaultPort is the port advertised for the unit's configuration
	// surface.
	DefaultPort = 80

	// DefaultRetryDelay is the pause before re-attempting a failed
	// registration.
	DefaultRetryDelay = 15 * time.Second
)

// reachableMask are the connectivity states in which an advertisement
// can actually be resolved.
const reachableMask = wifi.StateSTAGotIP | wifi.StateAP | wifi.StateAPSTA

// Handle is one published presence.
type Handle interface {
	// SetText replaces the advertisement's TXT records.
	SetText(text []string)
	// Shutdown withdraws the advertisement.
	Shutdown()
}

// RegisterFunc publishes a service instance and returns its handle.
type RegisterFunc func(instance, service, domain string, port int, text []string) (Handle, error)

// Settings configures the announcer. Zero fields take the defaults.
type Settings struct {
	Service    string
	Domain     string
	Port       int
	RetryDelay time.Duration
}

// DefaultSettings returns the settings a unit announces with out of the
// box.
func DefaultSettings() Settings {
	return Settings{
		Service:    ServiceType,
		Domain:     ServiceDomain,
		Port:       DefaultPort,
		RetryDelay: DefaultRetryDelay,
	}
}

func (s *Settings) normalize() {
	if s.Service == "" {
		s.Service = ServiceType
	}
	if s.Domain == "" {
		s.Domain = ServiceDomain
	}
	if s.Port <= 0 {
		s.Port = DefaultPort
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = DefaultRetryDelay
	}
}

// Announcer follows the connectivity manager and keeps the unit's mDNS
// advertisement in step with it.
type Announcer struct {
	// Register publishes the presence. It defaults to mDNS via zeroconf
	// and exists as a field so tests can observe announcements without a
	// network.
	Register RegisterFunc

	wifi     *wifi.Manager
	store    *unitcfg.Store
	settings Settings
	bootID   string
}

// New returns an announcer for the given connectivity manager and
// configuration store. It does not announce anything until Run.
func New(w *wifi.Manager, store *unitcfg.Store, settings Settings) *Announcer {
	settings.normalize()
	return &Announcer{
		Register: mdnsRegister,
		wifi:     w,
		store:    store,
		settings: settings,
		bootID:   uuid.NewString(),
	}
}

// BootID returns the identifier advertised for this process.
func (a *Announcer) BootID() string {
	return a.bootID
}

// Run follows connectivity state changes until ctx is canceled, keeping
// the advertisement registered exactly while the unit is reachable. It
// returns the context's error.
func (a *Announcer) Run(ctx context.Context) error {
	var handle Handle
	var published []string
	defer func() {
		if handle != nil {
			handle.Shutdown()
			logging.Info("Withdrew advertisement on shutdown")
		}
	}()

	for {
		state := a.wifi.State()
		registerFailed := false

		switch {
		case reachable(state) && handle == nil:
			cfg := a.store.Snapshot()
			instance := instanceName(cfg.User.UnitName, a.bootID)
			text := txtRecords(cfg.User.UnitName, wifi.StateName(state), version.Version, a.bootID)
			h, err := a.Register(instance, a.settings.Service, a.settings.Domain, a.settings.Port, text)
			if err != nil {
				logging.Warn("Registering advertisement failed",
					zap.String("instance", instance),
					zap.Error(err),
				)
				registerFailed = true
				break
			}
			handle = h
			published = text
			logging.Info("Advertising unit",
				zap.String("instance", instance),
				zap.String("service", a.settings.Service),
				zap.Int("port", a.settings.Port),
				zap.String("mode", wifi.StateName(state)),
			)

		case reachable(state) && handle != nil:
			cfg := a.store.Snapshot()
			text := txtRecords(cfg.User.UnitName, wifi.StateName(state), version.Version, a.bootID)
			if !slices.Equal(text, published) {
				handle.SetText(text)
				published = text
				logging.Debug("Refreshed advertisement", zap.String("mode", wifi.StateName(state)))
			}

		case handle != nil:
			handle.Shutdown()
			handle = nil
			published = nil
			logging.Info("Withdrew advertisement", zap.String("state", wifi.StateName(state)))
		}

		if err := a.waitNext(ctx, state, registerFailed); err != nil {
			return err
		}
	}
}

// waitNext blocks until the connectivity state moves off seen. After a
// failed registration it also wakes up on its own so the registration
// can be retried.
func (a *Announcer) waitNext(ctx context.Context, seen signal.Flags, retry bool) error {
	waitCtx := ctx
	if retry {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, a.settings.RetryDelay)
		defer cancel()
	}
	if _, err := a.wifi.WaitStateChange(waitCtx, seen); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Retry pause elapsed; take another swing at registering.
	}
	return nil
}

// mdnsRegister is the zeroconf-backed default registrar.
func mdnsRegister(instance, service, domain string, port int, text []string) (Handle, error) {
	srv, err := zeroconf.Register(instance, service, domain, port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("registering mdns service: %w", err)
	}
	return srv, nil
}

func reachable(state signal.Flags) bool {
	return state.Has(reachableMask)
}

// txtRecords builds the advertisement's "key=value" TXT records.
func txtRecords(unit, mode, ver, id string) []string {
	return []string{
		"unit=" + unit,
		"mode=" + mode,
		"ver=" + ver,
		"id=" + id,
	}
}

// instanceName combines the unit name with the short boot identifier so
// units sharing a name stay distinguishable.
func instanceName(unit, bootID string) string {
	if unit == "" {
		unit = "fieldlink"
	}
	short := bootID
	if len(short) > 8 {
		short = short[:8]
	}
	return unit + "-" + short
}
