package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/mqttwatch/config"
	"github.com/kilianp07/mqttwatch/core/console"
	corelink "github.com/kilianp07/mqttwatch/core/link"
	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
	"github.com/kilianp07/mqttwatch/core/supervisor"
	"github.com/kilianp07/mqttwatch/infra/link"
	"github.com/kilianp07/mqttwatch/infra/logger"
	"github.com/kilianp07/mqttwatch/infra/metrics"
	"github.com/kilianp07/mqttwatch/infra/mqtt"
	"github.com/kilianp07/mqttwatch/infra/mqttv5"
)

// BrokerFactory builds the broker client for a configuration.
type BrokerFactory func(cfg mqtt.Config, sink supervisor.MessageSink) (supervisor.Broker, error)

// NewBroker picks the client implementation matching cfg.Protocol.
func NewBroker(cfg mqtt.Config, sink supervisor.MessageSink) (supervisor.Broker, error) {
	switch cfg.Protocol {
	case mqtt.ProtocolV5:
		return mqttv5.NewBroker(cfg, sink)
	default:
		return mqtt.NewBroker(cfg, sink)
	}
}

// Option customises a Service.
type Option func(*options)

type options struct {
	out    io.Writer
	link   corelink.Provider
	broker BrokerFactory
}

// WithConsoleWriter replaces the diagnostic console output.
func WithConsoleWriter(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithLinkProvider replaces the host interface provider.
func WithLinkProvider(p corelink.Provider) Option { return func(o *options) { o.link = p } }

// WithBrokerFactory replaces NewBroker.
func WithBrokerFactory(f BrokerFactory) Option { return func(o *options) { o.broker = f } }

// Service joins the network link and supervises the broker session.
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	console  *console.Console
	closers  []io.Closer
	rec      coremetrics.Recorder
	link     corelink.Provider
	sup      *supervisor.Supervisor
	promAddr string
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{broker: NewBroker}
	for _, fn := range opts {
		fn(&o)
	}
	if err := logger.Configure(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	svc := &Service{cfg: cfg, log: logger.New("service")}

	if o.out == nil {
		o.out = os.Stdout
		if cfg.Console.Path != "" {
			f, err := os.OpenFile(cfg.Console.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("console: %w", err)
			}
			svc.closers = append(svc.closers, f)
			o.out = f
		}
	}
	svc.console = console.New(o.out)

	rec, err := coremetrics.NewRecorder(cfg.Metrics.Sinks)
	if err != nil {
		svc.closeAll()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	svc.rec = rec
	if c, ok := rec.(coremetrics.Closer); ok {
		svc.closers = append(svc.closers, c)
	}
	if svc.promAddr, err = metrics.PromAddress(cfg.Metrics.Sinks); err != nil {
		svc.closeAll()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	svc.link = o.link
	if svc.link == nil {
		svc.link = link.NewInterfaceProvider(cfg.Network.Interface)
	}

	sink := metrics.NewCountingSink(svc.console, rec)
	broker, err := o.broker(cfg.Broker, sink)
	if err != nil {
		svc.closeAll()
		return nil, fmt.Errorf("broker client: %w", err)
	}
	svc.sup = supervisor.New(broker, supervisor.Params{
		Topic:      cfg.Broker.Topic,
		QoS:        cfg.Broker.QoS,
		RetryDelay: cfg.Broker.RetryDelay(),
	},
		supervisor.WithConsole(svc.console),
		supervisor.WithLogger(logger.New("supervisor")),
		supervisor.WithRecorder(rec),
	)
	return svc, nil
}

// Supervisor exposes the session supervisor.
func (s *Service) Supervisor() *supervisor.Supervisor { return s.sup }

// Run waits for the network link, then supervises the broker session until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	_, err := corelink.Establish(ctx, s.link, corelink.Params{
		Network:      s.cfg.Network.DisplayName(),
		Secret:       s.cfg.Network.Secret,
		PollInterval: s.cfg.Network.PollInterval(),
	}, corelink.Deps{Console: s.console, Log: logger.New("link"), Recorder: s.rec})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	return s.sup.Run(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.sup.Close()
	return s.closeAll()
}

func (s *Service) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
