// Package controller собирает компоненты MGCP контроллера:
// реестр endpoint'ов, провайдеры сигналов и команд, медиатор и
// управляющий канал.
package controller

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/command"
	"github.com/arzzra/mgcp_control/pkg/mgcp/config"
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal/au"
	"github.com/arzzra/mgcp_control/pkg/mgcp/transaction"
	"github.com/arzzra/mgcp_control/pkg/mgcp/transport"
)

// defaultSegmentDuration длительность сегмента для TimedPlayer
const defaultSegmentDuration = 3 * time.Second

// Controller собранный MGCP контроллер
type Controller struct {
	Endpoints *endpoint.Registry
	Signals   *signal.Registry
	Mediator  *transaction.Mediator
	Channel   *transport.Channel

	logger logging.Logger
}

// New собирает контроллер по конфигурации.
// registerer может быть nil: метрики выключены.
func New(cfg config.Config, logger logging.Logger, registerer prometheus.Registerer) (*Controller, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	registry := endpoint.NewRegistry(cfg.Domain, cfg.MediaAddress, logger)
	factory := func() (*media.Group, error) {
		return &media.Group{
			Player:   media.NewTimedPlayer(defaultSegmentDuration),
			Detector: media.NewRTPDetector(media.DefaultDTMFPayloadType),
		}, nil
	}
	if err := registry.Install(cfg.EndpointPrefix, cfg.Endpoints, cfg.MediaBasePort, factory); err != nil {
		return nil, fmt.Errorf("ошибка установки endpoint'ов: %w", err)
	}

	signals := signal.NewRegistry(au.NewProvider(logger))
	provider := command.NewProvider(registry, signals, logger)

	var metrics *transaction.Metrics
	if registerer != nil {
		metrics = transaction.NewMetrics(registerer)
	}
	mediator := transaction.NewMediator(provider, transaction.Config{
		Timeout: cfg.TransactionTimeout,
		Workers: cfg.Workers,
	}, logger, metrics)

	// Медиатор наблюдает endpoint'ы: порожденные NTFY уходят OUT
	for _, ep := range registry.Endpoints() {
		ep.Observe(mediator)
	}

	channel := transport.NewChannel(transport.ChannelConfig{
		ListenAddr:    cfg.ListenAddr,
		CallAgentAddr: cfg.CallAgentAddr,
	}, transport.NewCodec(), mediator, logger)
	mediator.Observe(channel)

	return &Controller{
		Endpoints: registry,
		Signals:   signals,
		Mediator:  mediator,
		Channel:   channel,
		logger:    logger.WithComponent("controller"),
	}, nil
}

// Start открывает управляющий канал
func (c *Controller) Start() error {
	if err := c.Channel.Start(); err != nil {
		return err
	}
	c.logger.Info("контроллер запущен")
	return nil
}

// Stop останавливает канал и медиатор
func (c *Controller) Stop() {
	c.Channel.Stop()
	c.Mediator.Stop()
	c.logger.Info("контроллер остановлен")
}
