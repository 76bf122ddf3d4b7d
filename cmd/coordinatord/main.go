// Command coordinatord runs the pairing coordinator: it brings up the
// radio transport, the pairing state machine, the REST control plane,
// and (unless -headless is set) the operator TUI.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/MatusOllah/slogcolor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/batchlors/hydropair/api"
	"github.com/batchlors/hydropair/config"
	"github.com/batchlors/hydropair/pairing"
	"github.com/batchlors/hydropair/radio"
	"github.com/batchlors/hydropair/tui"
)

var (
	isVerbose  = flag.Bool("verbose", false, "Enable display of DEBUG log messages")
	headless   = flag.Bool("headless", false, "Run without the interactive TUI (REST control plane only)")
	configPath = flag.String("config", config.DefaultFile, "Path to coordinator configuration file")
	httpAddr   = flag.String("http-addr", ":8080", "Address for the REST control plane and /metrics")
)

// wallClock implements pairing.Clock against the host's monotonic time.
type wallClock struct{ start time.Time }

func newWallClock() wallClock { return wallClock{start: time.Now()} }

func (c wallClock) NowMS() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// cryptoRNG implements pairing.RNG with crypto/rand, matching the
// strength HKDF key derivation expects when strong_keys is enabled.
type cryptoRNG struct{}

func (cryptoRNG) Uint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the host is unusable; a zero value is
		// safer than panicking a coordinator mid binding window.
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

// serializedController is the sole caller into a *pairing.Controller.
// Every method posts a closure onto cmds and blocks for its result,
// the same way the teacher's main.go keeps all mutation of its
// subscriber state on one goroutine fed by a channel rather than
// letting the listener, ticker, and UI touch it directly. It
// implements both tui.Backend and api.Backend.
type serializedController struct {
	ctx        context.Context
	cmds       chan func()
	controller *pairing.Controller
}

func newSerializedController(ctx context.Context, controller *pairing.Controller) *serializedController {
	return &serializedController{ctx: ctx, cmds: make(chan func()), controller: controller}
}

// do runs fn on the owning goroutine and waits for it to finish,
// unless ctx is already done, in which case it gives up rather than
// blocking forever against a loop that has already exited.
func (s *serializedController) do(fn func()) {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
	case <-s.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-s.ctx.Done():
	}
}

func (s *serializedController) State() (state pairing.ControllerState) {
	s.do(func() { state = s.controller.State() })
	return
}

func (s *serializedController) Nodes() (nodes []pairing.DiscoveredNode) {
	s.do(func() { nodes = s.controller.Table().Snapshot() })
	return
}

func (s *serializedController) Stats() *pairing.BindingStats {
	// BindingStats guards its own counters with per-bucket locks and the
	// pointer is fixed at construction, so it's safe to hand out directly.
	return s.controller.Stats()
}

func (s *serializedController) EnablePermitJoin(durationMS uint64) {
	s.do(func() { s.controller.EnablePermitJoin(durationMS) })
}

func (s *serializedController) DisablePermitJoin() {
	s.do(func() { s.controller.DisablePermitJoin() })
}

func (s *serializedController) Approve(mac pairing.MAC, correlationID string) (err error) {
	s.do(func() { err = s.controller.Approve(mac, correlationID) })
	return
}

func (s *serializedController) Reject(mac pairing.MAC, reason pairing.ReasonCode) {
	s.do(func() { s.controller.Reject(mac, reason) })
}

// slogSink adapts pairing's EventSink to structured logging plus
// persisting the next tower ID allocator whenever a binding succeeds.
type slogSink struct {
	conf *config.Config
}

func (s slogSink) PermitJoinChanged(enabled bool, remainingMS uint64) {
	slog.Info("permit-join changed", "enabled", enabled, "remaining_ms", remainingMS)
}

func (s slogSink) NodeDiscovered(node pairing.DiscoveredNode, outcome pairing.ObserveOutcome) {
	slog.Debug("node discovered", "mac", node.MAC, "outcome", outcome, "type", node.DeviceType)
}

func (s slogSink) BindingStarted(attempt pairing.BindingAttempt) {
	slog.Info("binding started", "mac", attempt.NodeMAC, "tower_id", attempt.AssignedTowerID, "correlation_id", attempt.CorrelationID)
}

func (s slogSink) BindingCompleted(attempt pairing.BindingAttempt, result pairing.Result) {
	slog.Info("binding completed", "mac", attempt.NodeMAC, "result", result, "correlation_id", attempt.CorrelationID)
	if result == pairing.ResultSuccess {
		s.conf.SetName(attempt.NodeMAC, attempt.NodeMAC.String())
		s.conf.SetNextTowerID(attempt.AssignedTowerID + 1)
	}
}

func main() {
	flag.Parse()

	opts := slogcolor.DefaultOptions
	if *isVerbose {
		opts.Level = slog.LevelDebug
	} else {
		opts.Level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))

	conf, err := config.Load(*configPath)
	if err != nil {
		config.LogMissing(*configPath, err)
		conf = config.New(pairing.Identity{})
	}
	defer func() {
		if err := conf.Write(*configPath); err != nil {
			slog.Error("error writing configuration", "fn", *configPath, "err", err)
		}
	}()

	identity, err := conf.Identity()
	if err != nil {
		slog.Error("invalid coordinator identity in configuration", "err", err)
		os.Exit(1)
	}

	timing := conf.Timing()
	ttlMS := timing.DiscoveryTTLMS
	if ttlMS == 0 {
		ttlMS = pairing.DefaultDiscoveryTTLMS
	}
	capacity := timing.MaxDiscoveredNodes
	if capacity == 0 {
		capacity = pairing.DefaultMaxDiscoveredNodes
	}
	table := pairing.NewDiscoveryTable(capacity, ttlMS)

	controller := pairing.NewController(pairing.ControllerConfig{
		Identity:           identity,
		Table:              table,
		Clock:              newWallClock(),
		RNG:                cryptoRNG{},
		Sink:               slogSink{conf: conf},
		PermitJoinWindowMS: timing.PermitJoinWindowMS,
		MaxPermitJoinMS:    timing.MaxPermitJoinMS,
		BindingTimeoutMS:   timing.BindingTimeoutMS,
		StrongKeys:         conf.StrongKeys(),
	})

	transport, err := radio.New()
	if err != nil {
		slog.Error("failed to open radio transport", "err", err)
		os.Exit(1)
	}
	defer transport.Close()
	controller.SetSender(transport)

	go transport.Listen()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	serialized := newSerializedController(ctx, controller)
	go runLoop(ctx, controller, transport, serialized.cmds)

	registry := prometheus.NewRegistry()
	registry.MustRegister(pairing.NewCollector(controller))
	restServer := api.NewServer(serialized, registry)
	httpServer := &http.Server{Addr: *httpAddr, Handler: restServer.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "err", err)
		}
	}()

	if *headless {
		slog.Info("running headless", "http_addr", *httpAddr)
		<-ctx.Done()
	} else {
		p := tea.NewProgram(tui.New(serialized))
		if _, err := p.Run(); err != nil {
			slog.Error("tui exited with error", "err", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "err", err)
	}
	fmt.Println("coordinatord: exiting")
}

// runLoop is the single goroutine that ever touches controller: it
// dispatches decoded radio frames, drives the C6 tick, and executes
// operator commands funneled in from the TUI and REST surfaces via
// cmds, mirroring the teacher's main.go select loop over its
// subscription channel, a timeout, and ctx.Done().
func runLoop(ctx context.Context, controller *pairing.Controller, transport *radio.Transport, cmds <-chan func()) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case msg := <-transport.Messages():
			switch m := msg.(type) {
			case *pairing.Advertisement:
				controller.OnAdvertisement(*m, 0)
			case *pairing.Accept:
				controller.OnAccept(*m)
			case *pairing.Abort:
				controller.OnAbort(*m)
			}
		case <-ticker.C:
			controller.Tick()
		case cmd := <-cmds:
			cmd()
		case <-ctx.Done():
			return
		}
	}
}
