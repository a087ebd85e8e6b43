// Package endpoint реализует фасад MGCP endpoint'а: соединения,
// активацию сигналов и исходящие уведомления NTFY, а также реестр
// endpoint'ов с поддержкой wildcard идентификаторов.
package endpoint

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
	"github.com/arzzra/mgcp_control/pkg/mgcp/subject"
)

// sdpSessionSeq счетчик идентификаторов SDP сессий шлюза
var sdpSessionSeq atomic.Uint64

// Endpoint медиа endpoint, управляемый контроллером.
// Реализует subject.Subject: порожденные запросы (NTFY) рассылаются
// наблюдателям с направлением Outgoing.
type Endpoint struct {
	*subject.Basic

	id           message.EndpointID
	logger       logging.Logger
	mediaGroup   *media.Group
	mediaAddress string
	mediaPort    int

	mu             sync.Mutex
	active         bool
	connections    map[string]*Connection
	signals        map[string]signal.Signal
	requestID      string
	notifiedEntity string
}

// newEndpoint создает endpoint (используется реестром)
func newEndpoint(id message.EndpointID, group *media.Group, mediaAddress string, mediaPort int, logger logging.Logger) *Endpoint {
	return &Endpoint{
		Basic:        subject.NewBasic(logger),
		id:           id,
		logger:       logger.WithComponent("endpoint").WithFields(logging.String("endpoint", id.String())),
		mediaGroup:   group,
		mediaAddress: mediaAddress,
		mediaPort:    mediaPort,
		active:       true,
		connections:  make(map[string]*Connection),
		signals:      make(map[string]signal.Signal),
	}
}

// ID идентификатор endpoint'а
func (ep *Endpoint) ID() message.EndpointID { return ep.id }

// MediaGroup медиа ресурсы endpoint'а
func (ep *Endpoint) MediaGroup() *media.Group { return ep.mediaGroup }

// IsActive endpoint принимает команды
func (ep *Endpoint) IsActive() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.active
}

// SetActive переводит endpoint в (не)рабочее состояние
func (ep *Endpoint) SetActive(active bool) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.active = active
}

// IsIdle endpoint свободен: нет соединений и исполняющихся сигналов.
// Используется при аллокации wildcard $.
func (ep *Endpoint) IsIdle() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if len(ep.connections) > 0 {
		return false
	}
	for _, s := range ep.signals {
		if s.IsExecuting() {
			return false
		}
	}
	return true
}

// --- Соединения ---

// CreateConnection регистрирует новое соединение и строит local description
func (ep *Endpoint) CreateConnection(callID string, mode ConnectionMode, remoteSDP string) (*Connection, error) {
	conn := &Connection{
		ID:     generateConnectionID(),
		CallID: callID,
		Mode:   mode,
	}
	if err := conn.SetRemoteDescription(remoteSDP); err != nil {
		return nil, err
	}
	local, err := buildLocalDescription(ep.mediaAddress, ep.mediaPort, sdpSessionSeq.Add(1))
	if err != nil {
		return nil, err
	}
	conn.LocalSDP = local

	ep.mu.Lock()
	defer ep.mu.Unlock()
	if _, exists := ep.connections[conn.ID]; exists {
		return nil, ErrConnectionExists
	}
	ep.connections[conn.ID] = conn
	ep.logger.Debug("соединение создано",
		logging.String("connection", conn.ID),
		logging.String("call", callID))
	return conn, nil
}

// ModifyConnection изменяет режим и/или remote description соединения
func (ep *Endpoint) ModifyConnection(connectionID string, mode *ConnectionMode, remoteSDP string) (*Connection, error) {
	ep.mu.Lock()
	conn, ok := ep.connections[connectionID]
	ep.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	if mode != nil {
		conn.Mode = *mode
	}
	if remoteSDP != "" {
		if err := conn.SetRemoteDescription(remoteSDP); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

// Connection возвращает соединение по идентификатору
func (ep *Endpoint) Connection(connectionID string) (*Connection, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	conn, ok := ep.connections[connectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	return conn, nil
}

// DeleteConnection удаляет одно соединение
func (ep *Endpoint) DeleteConnection(connectionID string) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if _, ok := ep.connections[connectionID]; !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	delete(ep.connections, connectionID)
	return nil
}

// DeleteConnections удаляет соединения вызова; callID == "" удаляет все.
// Возвращает число удаленных соединений.
func (ep *Endpoint) DeleteConnections(callID string) int {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	deleted := 0
	for id, conn := range ep.connections {
		if callID == "" || conn.CallID == callID {
			delete(ep.connections, id)
			deleted++
		}
	}
	return deleted
}

// ConnectionCount текущее число соединений
func (ep *Endpoint) ConnectionCount() int {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return len(ep.connections)
}

// --- Сигналы ---

func signalKey(s signal.Signal) string {
	return s.Package() + "/" + s.Symbol()
}

// RequestNotification обрабатывает RQNT: запоминает request id и
// notified entity, затем активирует сигналы. Пустой список сигналов
// отменяет все активные.
func (ep *Endpoint) RequestNotification(requestID, notifiedEntity string, signals []signal.Signal) error {
	ep.mu.Lock()
	ep.requestID = requestID
	if notifiedEntity != "" {
		ep.notifiedEntity = notifiedEntity
	}
	ep.mu.Unlock()

	if len(signals) == 0 {
		ep.CancelSignals()
		return nil
	}
	for _, s := range signals {
		if err := ep.ActivateSignal(s); err != nil {
			return err
		}
	}
	return nil
}

// ActivateSignal активирует сигнал на endpoint'е.
//
// ON_OFF сигналы идемпотентны по (package, symbol): повторная активация
// исполняющегося сигнала — no-op. Активация TIME_OUT сигнала при уже
// исполняющемся TIME_OUT сигнале возвращает ErrSignalBusy (528):
// Player и DtmfDetector эксклюзивно принадлежат активному сигналу.
func (ep *Endpoint) ActivateSignal(s signal.Signal) error {
	key := signalKey(s)

	ep.mu.Lock()
	if !ep.active {
		ep.mu.Unlock()
		return ErrEndpointNotReady
	}
	if existing, ok := ep.signals[key]; ok && existing.IsExecuting() && s.Type() == signal.OnOff {
		ep.mu.Unlock()
		return nil
	}
	if s.Type() == signal.TimeOut {
		for _, active := range ep.signals {
			if active.Type() == signal.TimeOut && active.IsExecuting() {
				ep.mu.Unlock()
				return fmt.Errorf("%w: %s", ErrSignalBusy, key)
			}
		}
	}
	ep.signals[key] = s
	ep.mu.Unlock()

	s.Observe(ep)
	if err := s.Execute(); err != nil {
		ep.mu.Lock()
		delete(ep.signals, key)
		ep.mu.Unlock()
		s.Forget(ep)
		return err
	}
	ep.logger.Debug("сигнал активирован", logging.String("signal", key))
	return nil
}

// CancelSignals отменяет все активные сигналы
func (ep *Endpoint) CancelSignals() {
	ep.mu.Lock()
	signals := make([]signal.Signal, 0, len(ep.signals))
	for _, s := range ep.signals {
		signals = append(signals, s)
	}
	ep.signals = make(map[string]signal.Signal)
	ep.mu.Unlock()

	for _, s := range signals {
		s.Cancel()
		s.Forget(ep)
	}
}

// OnSignalEvent реализует signal.EventObserver: завершение сигнала
// преобразуется в исходящий NTFY
func (ep *Endpoint) OnSignalEvent(s signal.Signal, event signal.Event) {
	key := signalKey(s)
	ep.mu.Lock()
	if current, ok := ep.signals[key]; ok && current == s {
		delete(ep.signals, key)
	}
	requestID := ep.requestID
	notifiedEntity := ep.notifiedEntity
	ep.mu.Unlock()
	s.Forget(ep)

	params := message.Parameters{
		message.ParameterObservedEvents: event.String(),
	}
	if requestID != "" {
		params[message.ParameterRequestID] = requestID
	}
	if notifiedEntity != "" {
		params[message.ParameterNotifiedEntity] = notifiedEntity
	}

	// Transaction id назначит медиатор при отправке
	ntfy := &message.Request{
		Verb:       message.VerbNotify,
		Endpoint:   ep.id,
		Parameters: params,
	}
	ep.logger.Info("событие сигнала",
		logging.String("signal", key),
		logging.String("event", event.String()))
	ep.Notify(ntfy, message.Outgoing)
}
