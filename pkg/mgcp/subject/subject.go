// Package subject реализует шину наблюдателей MGCP сообщений.
// Компоненты (медиатор, транспорт, endpoint'ы) обмениваются сообщениями
// через Notify с указанием направления; подписка через Observe/Forget.
package subject

import (
	"sync"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// Observer получает уведомления о сообщениях
type Observer interface {
	OnMessage(msg message.Message, direction message.Direction)
}

// Subject позволяет подписываться на сообщения и рассылать их
type Subject interface {
	Observe(o Observer)
	Forget(o Observer)
	Notify(msg message.Message, direction message.Direction)
}

// Basic потокобезопасная реализация Subject.
//
// Гарантии рассылки:
//   - каждый зарегистрированный наблюдатель вызывается ровно один раз,
//     в порядке регистрации;
//   - Observe/Forget во время рассылки не влияют на текущую рассылку
//     (снимок списка делается на входе в Notify);
//   - паника одного наблюдателя логируется и не прерывает рассылку;
//   - реентерабельный Notify из наблюдателя образует новую рассылку
//     по актуальному на тот момент списку.
type Basic struct {
	mu        sync.RWMutex
	observers []Observer
	logger    logging.Logger
}

// NewBasic создает шину с указанным logger'ом
func NewBasic(logger logging.Logger) *Basic {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Basic{logger: logger}
}

// Observe регистрирует наблюдателя. Повторная регистрация игнорируется.
func (s *Basic) Observe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.observers {
		if existing == o {
			return
		}
	}
	s.observers = append(s.observers, o)
}

// Forget снимает регистрацию наблюдателя
func (s *Basic) Forget(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.observers {
		if existing == o {
			// Копия хвоста, чтобы не трогать снимки идущих рассылок
			observers := make([]Observer, 0, len(s.observers)-1)
			observers = append(observers, s.observers[:i]...)
			observers = append(observers, s.observers[i+1:]...)
			s.observers = observers
			return
		}
	}
}

// Notify рассылает сообщение всем зарегистрированным наблюдателям
func (s *Basic) Notify(msg message.Message, direction message.Direction) {
	s.mu.RLock()
	snapshot := s.observers
	s.mu.RUnlock()

	for _, o := range snapshot {
		s.deliver(o, msg, direction)
	}
}

// deliver доставляет сообщение одному наблюдателю с изоляцией паники
func (s *Basic) deliver(o Observer, msg message.Message, direction message.Direction) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("наблюдатель завершился паникой",
				logging.Any("panic", r),
				logging.String("direction", direction.String()),
				logging.Int("transaction", msg.TransactionID()),
			)
		}
	}()
	o.OnMessage(msg, direction)
}
