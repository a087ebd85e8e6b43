// Package config загружает конфигурацию контроллера из переменных
// окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config конфигурация MGCP контроллера
type Config struct {
	// ListenAddr адрес управляющего UDP канала
	ListenAddr string `env:"MGCP_LISTEN_ADDR" envDefault:"0.0.0.0:2427"`
	// CallAgentAddr адрес call agent'а для исходящих NTFY
	CallAgentAddr string `env:"MGCP_CALL_AGENT_ADDR"`
	// Domain доменная часть идентификаторов endpoint'ов
	Domain string `env:"MGCP_DOMAIN" envDefault:"mgw.local"`
	// EndpointPrefix префикс локальных имен endpoint'ов
	EndpointPrefix string `env:"MGCP_ENDPOINT_PREFIX" envDefault:"aaln"`
	// Endpoints число устанавливаемых endpoint'ов
	Endpoints int `env:"MGCP_ENDPOINTS" envDefault:"16"`
	// MediaAddress адрес медиа интерфейса в local description
	MediaAddress string `env:"MGCP_MEDIA_ADDR" envDefault:"127.0.0.1"`
	// MediaBasePort базовый RTP порт endpoint'ов
	MediaBasePort int `env:"MGCP_MEDIA_BASE_PORT" envDefault:"16384"`
	// TransactionTimeout тайм-аут MGCP транзакции
	TransactionTimeout time.Duration `env:"MGCP_TRANSACTION_TIMEOUT" envDefault:"30s"`
	// Workers размер пула исполнителей команд
	Workers int `env:"MGCP_WORKERS" envDefault:"4"`
	// LogLevel уровень логирования: debug, info, warn, error
	LogLevel string `env:"MGCP_LOG_LEVEL" envDefault:"info"`
	// LogJSON вывод логов в JSON
	LogJSON bool `env:"MGCP_LOG_JSON" envDefault:"true"`
	// MetricsAddr адрес HTTP экспорта метрик; пустой выключает экспорт
	MetricsAddr string `env:"MGCP_METRICS_ADDR"`
}

// Load читает конфигурацию из окружения
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c Config) Validate() error {
	if c.Endpoints <= 0 {
		return fmt.Errorf("MGCP_ENDPOINTS должно быть положительным: %d", c.Endpoints)
	}
	if c.MediaBasePort <= 0 || c.MediaBasePort > 65535 {
		return fmt.Errorf("некорректный MGCP_MEDIA_BASE_PORT: %d", c.MediaBasePort)
	}
	if c.TransactionTimeout <= 0 {
		return fmt.Errorf("некорректный MGCP_TRANSACTION_TIMEOUT: %s", c.TransactionTimeout)
	}
	return nil
}
