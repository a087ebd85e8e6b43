// mgcpd — демон MGCP контроллера endpoint'ов
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/config"
	"github.com/arzzra/mgcp_control/pkg/mgcp/controller"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		listenAddr string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "mgcpd",
		Short: "MGCP контроллер endpoint'ов",
		Long: "Демон управления медиа шлюзом по протоколу MGCP (RFC 3435):\n" +
			"транзакционный медиатор команд и сигналы пакета Advanced Audio.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "адрес управляющего канала (переопределяет MGCP_LISTEN_ADDR)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "уровень логирования (переопределяет MGCP_LOG_LEVEL)")
	return cmd
}

func run(cfg config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.WithLevel(level), logging.WithJSON(cfg.LogJSON))

	registry := prometheus.NewRegistry()
	ctrl, err := controller.New(cfg, logger, registry)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("ошибка HTTP экспорта метрик", logging.Err(err))
			}
		}()
	}

	if err := ctrl.Start(); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctrl.Stop()
	return nil
}
