package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/kilianp07/multisend/api/admin"
	"github.com/kilianp07/multisend/api/batches"
	apievents "github.com/kilianp07/multisend/api/events"
	"github.com/kilianp07/multisend/app/plugins"
	"github.com/kilianp07/multisend/config"
	"github.com/kilianp07/multisend/core/dispatch"
	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/core/factory"
	coremetrics "github.com/kilianp07/multisend/core/metrics"
	"github.com/kilianp07/multisend/core/model"
	coremon "github.com/kilianp07/multisend/core/monitoring"
	"github.com/kilianp07/multisend/infra/logger"
	"github.com/kilianp07/multisend/infra/metrics"
	"github.com/kilianp07/multisend/infra/monitoring"
	"github.com/kilianp07/multisend/infra/mqtt"
	"github.com/kilianp07/multisend/internal/eventbus"
)

// Service wires the dispatcher to its ledger, observability sinks and the
// HTTP API.
type Service struct {
	Dispatcher *dispatch.Dispatcher
	Sequencer  *dispatch.Sequencer
	Ledger     plugins.Backend
	Store      logging.LogStore

	cfg       *config.Config
	bus       *eventbus.Bus
	stream    *apievents.Stream
	client    *mqtt.PahoClient
	forwarder *mqtt.Forwarder
	monitor   coremon.Monitor
	mux       *http.ServeMux
	log       logger.Logger
	closeOnce sync.Once
}

// New builds a Service from the configuration. The ledger is seeded from the
// genesis section unless it is a sqlite database that already exists.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	logg := logger.New("service")
	s := &Service{cfg: cfg, log: logg, bus: eventbus.New(), mux: http.NewServeMux()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.monitor, err = monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(s.monitor)

	if err = s.openLedger(ctx); err != nil {
		return nil, err
	}

	s.Dispatcher, err = dispatch.NewDispatcher(cfg.Dispatcher, s.Ledger, logger.New("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.Dispatcher.SetMetrics(sink)
	s.Dispatcher.SetEventBus(s.bus)

	if s.Store, err = logging.NewStore(cfg.Logging); err != nil {
		return nil, fmt.Errorf("batch log: %w", err)
	}
	if s.Store != nil {
		s.Dispatcher.SetLogStore(s.Store)
	}

	if cfg.MQTT.Enabled {
		if s.client, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.forwarder = mqtt.NewForwarder(s.client, cfg.MQTT.TopicPrefix)
	}

	s.Sequencer = dispatch.NewSequencer(logger.New("sequencer"))
	if err = s.routes(); err != nil {
		return nil, err
	}
	logg.Infof("service ready: ledger=%s logs=%s mqtt=%t", cfg.Ledger.Type, cfg.Logging.Backend, cfg.MQTT.Enabled)
	return s, nil
}

func (s *Service) openLedger(ctx context.Context) error {
	lc := s.cfg.Ledger
	fresh := true
	if lc.Type == "sqlite" {
		if _, err := os.Stat(lc.Path); err == nil {
			fresh = false
		}
	}
	b, err := plugins.NewLedger(factory.ModuleConfig{Type: lc.Type, Conf: map[string]any{"path": lc.Path}})
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	s.Ledger = b

	if fresh && len(lc.Genesis) > 0 {
		accounts, err := lc.Accounts()
		if err != nil {
			return err
		}
		spender, err := model.ParseAddress(s.cfg.Dispatcher.Address)
		if err != nil {
			return fmt.Errorf("dispatcher address: %w", err)
		}
		if err := b.Seed(ctx, spender, accounts); err != nil {
			return fmt.Errorf("seed ledger: %w", err)
		}
		s.log.Infof("seeded %d accounts", len(accounts))
	}
	policies, err := lc.Policies()
	if err != nil {
		return err
	}
	for addr, p := range policies {
		if err := b.SetReceiver(ctx, addr, p); err != nil {
			return fmt.Errorf("receiver %s: %w", addr.Hex(), err)
		}
	}
	return nil
}

func (s *Service) routes() error {
	bh, err := batches.NewHandler(
		dispatch.Serialized{Dispatcher: s.Dispatcher, Seq: s.Sequencer},
		s.Store,
		batches.Options{Token: s.cfg.API.Token, IdempotencyCacheSize: s.cfg.API.IdempotencyCacheSize},
	)
	if err != nil {
		return err
	}
	bh.Register(s.mux)
	admin.NewHandler(s.Dispatcher, s.Sequencer, s.cfg.API.Token).Register(s.mux)
	s.stream = apievents.NewStream(s.cfg.API.Token)
	s.mux.Handle("GET "+s.cfg.API.EventsPath, s.stream)
	return nil
}

// Handler returns the API handler.
func (s *Service) Handler() http.Handler { return s.mux }

// Run listens on the configured API address and blocks until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.API.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve starts the background workers and serves the API on ln until ctx is
// canceled.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer s.monitor.Recover()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer coremon.Recover()
			fn()
		}()
	}
	start(func() { s.Sequencer.Run(ctx) })
	start(func() { s.stream.Run(ctx, s.bus) })
	if s.forwarder != nil {
		start(func() { s.forwarder.Run(ctx, s.bus) })
	}
	if addr := s.cfg.Metrics.PromAddr; addr != "" {
		start(func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}

	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.stream.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", ln.Addr())
	err := srv.Serve(ln)
	cancel()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Deliver runs fn and forwards the notifications it publishes to the broker
// before returning. One-shot commands use it in place of Serve. Without MQTT
// it only runs fn.
func (s *Service) Deliver(fn func()) error {
	if s.forwarder == nil {
		fn()
		return nil
	}
	sub := s.bus.Subscribe()
	done := make(chan error, 1)
	go func() {
		var errs []error
		for v := range sub {
			ev, ok := v.(events.Event)
			if !ok {
				continue
			}
			if err := s.forwarder.Forward(ev); err != nil {
				errs = append(errs, fmt.Errorf("forward %s: %w", ev.Topic(), err))
			}
		}
		done <- errors.Join(errs...)
	}()
	fn()
	// queued values are still received after the channel closes
	s.bus.Unsubscribe(sub)
	return <-done
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.client.Disconnect()
		}
		s.bus.Close()
		if n := s.bus.Dropped(); n > 0 {
			s.log.Warnf("%d notifications dropped by slow consumers", n)
		}
		if s.Store != nil {
			errs = append(errs, s.Store.Close())
		}
		if c, ok := s.Ledger.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		if s.monitor != nil {
			s.monitor.Flush(2 * time.Second)
		}
	})
	return errors.Join(errs...)
}
