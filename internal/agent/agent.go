package agent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/okkerse/fieldlink/internal/announce"
	"github.com/okkerse/fieldlink/internal/flash"
	"github.com/okkerse/fieldlink/internal/logging"
	"github.com/okkerse/fieldlink/internal/persist"
	"github.com/okkerse/fieldlink/internal/radio"
	"github.com/okkerse/fieldlink/internal/signal"
	"github.com/okkerse/fieldlink/internal/unitcfg"
	"github.com/okkerse/fieldlink/internal/version"
	"github.com/okkerse/fieldlink/internal/wifi"
)

// FlagReboot asks a running agent to shut down for a restart.
const FlagReboot signal.Flags = 1

// ErrRebootRequested is returned by Run after a graceful shutdown
// triggered by RequestReboot; the supervisor restarts the process, which
// stands in for a device reset.
var ErrRebootRequested = errors.New("agent: reboot requested")

// Agent wires a unit together: flash behind a persistence manager, a
// radio behind a connectivity manager, and an announcer following both.
type Agent struct {
	settings Settings
	bootReq  signal.Flags

	store     *unitcfg.Store
	persist   *persist.Manager
	wifi      *wifi.Manager
	announcer *announce.Announcer

	reboot *signal.Group
}

// New assembles an agent over the given flash store and radio and starts
// the managers' workers. Nothing touches flash or the radio until Run
// drives the boot sequence.
func New(blobs flash.Store, r radio.Radio, settings Settings) (*Agent, error) {
	settings.fillDefaults()

	bootReq, err := settings.bootRequest()
	if err != nil {
		return nil, err
	}
	factory, err := settings.FactoryDefaults()
	if err != nil {
		return nil, err
	}

	store := unitcfg.NewStore()
	pm, err := persist.New(store, blobs, factory)
	if err != nil {
		return nil, err
	}
	wm, err := wifi.New(store, r, settings.wifiSettings())
	if err != nil {
		pm.Close()
		return nil, err
	}

	a := &Agent{
		settings: settings,
		bootReq:  bootReq,
		store:    store,
		persist:  pm,
		wifi:     wm,
		reboot:   signal.NewGroup(),
	}
	if !settings.Announce.Disabled {
		a.announcer = announce.New(wm, store, settings.announceSettings())
	}
	return a, nil
}

// Store returns the live configuration store.
func (a *Agent) Store() *unitcfg.Store { return a.store }

// Persist returns the persistence manager.
func (a *Agent) Persist() *persist.Manager { return a.persist }

// Wifi returns the connectivity manager.
func (a *Agent) Wifi() *wifi.Manager { return a.wifi }

// Announcer returns the mDNS announcer, or nil when announcing is
// disabled.
func (a *Agent) Announcer() *announce.Announcer { return a.announcer }

// RequestReboot asks the agent to shut down and report
// ErrRebootRequested from Run.
func (a *Agent) RequestReboot() {
	a.reboot.Set(FlagReboot)
}

// Run boots the unit and parks until ctx is canceled or a reboot is
// requested, then shuts everything down in order. It returns the
// context's error, or ErrRebootRequested.
func (a *Agent) Run(ctx context.Context) error {
	logging.Info("Booting unit", zap.String("version", version.Full()))

	annCtx, annCancel := context.WithCancel(ctx)
	annDone := make(chan struct{})
	if a.announcer != nil {
		go func() {
			defer close(annDone)
			if err := a.announcer.Run(annCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("Announcer stopped", zap.Error(err))
			}
		}()
	} else {
		close(annDone)
	}

	shutdown := func() {
		annCancel()
		<-annDone
		a.wifi.Close()
		a.persist.Close()
		logging.Sync()
	}

	if err := a.boot(ctx); err != nil {
		shutdown()
		return err
	}

	_, err := a.reboot.ConsumeAny(ctx, FlagReboot)
	shutdown()
	if err != nil {
		return err
	}
	logging.Info("Rebooting unit")
	return ErrRebootRequested
}

// boot brings flash up, then connectivity. A station boot without any
// configured network goes straight to AP so a fresh unit is reachable
// for provisioning.
func (a *Agent) boot(ctx context.Context) error {
	if err := a.persist.RequestState(persist.RequestReady); err != nil {
		return err
	}
	if _, err := a.persist.WaitUntilState(ctx, persist.StateReady); err != nil {
		return err
	}

	req := a.bootReq
	if req.Has(wifi.RequestSTA | wifi.RequestAPSTA) {
		cfg := a.store.Snapshot()
		if len(cfg.Connectivity.Networks) == 0 {
			logging.Warn("No networks configured, booting into access point for provisioning")
			req = wifi.RequestAP
		}
	}
	if err := a.wifi.RequestState(req); err != nil {
		return err
	}
	if req != wifi.RequestNone {
		up, err := a.wifi.AwaitAny(ctx, wifi.StateSTA|wifi.StateAP|wifi.StateAPSTA)
		if err != nil {
			return err
		}
		logging.Info("Unit on the air", zap.String("state", wifi.StateName(up)))
	}
	return nil
}
