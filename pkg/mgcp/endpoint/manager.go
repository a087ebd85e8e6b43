package endpoint

import (
	"fmt"
	"strings"
	"sync"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// Manager разрешает идентификаторы endpoint'ов.
// Wildcard $ аллоцирует свободный endpoint; wildcard * перечисляет
// все подходящие.
type Manager interface {
	// Lookup разрешает конкретный идентификатор (wildcard не принимается)
	Lookup(id message.EndpointID) (*Endpoint, error)
	// Allocate возвращает свободный endpoint для wildcard $
	Allocate(id message.EndpointID) (*Endpoint, error)
	// Match перечисляет endpoint'ы для wildcard *
	Match(id message.EndpointID) []*Endpoint
}

// Registry реестр endpoint'ов контроллера
type Registry struct {
	domain       string
	mediaAddress string
	logger       logging.Logger

	mu        sync.RWMutex
	endpoints map[string]*Endpoint // ключ: локальное имя
	order     []string             // имена в порядке установки
}

// NewRegistry создает пустой реестр для домена
func NewRegistry(domain, mediaAddress string, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		domain:       domain,
		mediaAddress: mediaAddress,
		logger:       logger.WithComponent("endpoint.registry"),
		endpoints:    make(map[string]*Endpoint),
	}
}

// Domain домен реестра
func (r *Registry) Domain() string { return r.domain }

// Install создает count endpoint'ов с именами prefix/1..count.
// Медиа порты назначаются последовательно от basePort с шагом 2
// (четные порты RTP).
func (r *Registry) Install(prefix string, count, basePort int, factory media.GroupFactory) error {
	if count <= 0 {
		return fmt.Errorf("некорректное число endpoint'ов: %d", count)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i <= count; i++ {
		local := fmt.Sprintf("%s/%d", prefix, i)
		if _, exists := r.endpoints[local]; exists {
			return fmt.Errorf("endpoint %s уже установлен", local)
		}
		group, err := factory()
		if err != nil {
			return fmt.Errorf("ошибка создания медиа ресурсов для %s: %w", local, err)
		}
		id := message.EndpointID{Local: local, Domain: r.domain}
		ep := newEndpoint(id, group, r.mediaAddress, basePort+2*(i-1), r.logger)
		r.endpoints[local] = ep
		r.order = append(r.order, local)
	}
	r.logger.Info("endpoint'ы установлены",
		logging.String("prefix", prefix),
		logging.Int("count", count))
	return nil
}

// Lookup разрешает конкретный идентификатор
func (r *Registry) Lookup(id message.EndpointID) (*Endpoint, error) {
	if id.IsWildcardAll() || id.IsWildcardAny() {
		return nil, fmt.Errorf("%w: wildcard %s", ErrEndpointUnknown, id)
	}
	if !strings.EqualFold(id.Domain, r.domain) {
		return nil, fmt.Errorf("%w: %s", ErrEndpointUnknown, id)
	}
	r.mu.RLock()
	ep, ok := r.endpoints[id.Local]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEndpointUnknown, id)
	}
	if !ep.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrEndpointNotReady, id)
	}
	return ep, nil
}

// Allocate возвращает свободный endpoint для wildcard $.
// Поддерживаются формы "$@domain" и "prefix/$@domain".
func (r *Registry) Allocate(id message.EndpointID) (*Endpoint, error) {
	if !strings.EqualFold(id.Domain, r.domain) {
		return nil, fmt.Errorf("%w: %s", ErrEndpointUnknown, id)
	}
	prefix := strings.TrimSuffix(id.Local, message.WildcardAny)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, local := range r.order {
		if prefix != "" && !strings.HasPrefix(local, prefix) {
			continue
		}
		ep := r.endpoints[local]
		if ep.IsActive() && ep.IsIdle() {
			return ep, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoEndpointAvailable, id)
}

// Match перечисляет endpoint'ы для wildcard * в порядке установки.
// Поддерживаются формы "*@domain" и "prefix/*@domain".
func (r *Registry) Match(id message.EndpointID) []*Endpoint {
	if !strings.EqualFold(id.Domain, r.domain) {
		return nil
	}
	prefix := strings.TrimSuffix(id.Local, message.WildcardAll)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*Endpoint
	for _, local := range r.order {
		if prefix != "" && !strings.HasPrefix(local, prefix) {
			continue
		}
		matched = append(matched, r.endpoints[local])
	}
	return matched
}

// Endpoints перечисляет установленные endpoint'ы (для аудита и тестов)
func (r *Registry) Endpoints() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, local := range r.order {
		out = append(out, r.endpoints[local])
	}
	return out
}
