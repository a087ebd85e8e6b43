// Package au реализует пакет сигналов Advanced Audio (AU): проигрывание
// приглашений и сбор DTMF цифр на endpoint'е.
package au

import (
	"fmt"
	"strings"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// PackageName имя пакета в запросах сигналов
const PackageName = "AU"

// Символы сигналов пакета
const (
	SymbolPlayCollect      = "pc"
	SymbolPlayAnnouncement = "pa"
)

// Provider создает сигналы пакета AU
type Provider struct {
	logger logging.Logger
}

// NewProvider создает провайдер пакета AU
func NewProvider(logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Provider{logger: logger}
}

// PackageName реализует signal.PackageProvider
func (p *Provider) PackageName() string { return PackageName }

// Provide создает сигнал по символу
func (p *Provider) Provide(symbol string, parameters map[string]string, group *media.Group) (signal.Signal, error) {
	if group == nil {
		return nil, media.ErrNoResources
	}
	switch strings.ToLower(symbol) {
	case SymbolPlayCollect:
		return NewPlayCollect(group.Player, group.Detector, parameters, p.logger)
	case SymbolPlayAnnouncement:
		return NewPlayAnnouncement(group.Player, parameters, p.logger)
	default:
		return nil, fmt.Errorf("%w: %s/%s", signal.ErrUnknownSignal, PackageName, symbol)
	}
}
