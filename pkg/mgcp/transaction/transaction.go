// Package transaction реализует транзакционный медиатор MGCP:
// таблицу открытых транзакций, диспетчеризацию команд, корреляцию
// ответов и подавление дубликатов.
package transaction

import (
	"fmt"
	"sync"
	"time"

	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// State состояние транзакции
type State int

const (
	StateIdle State = iota
	StateInProgress
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// StateValidator валидирует переходы состояний транзакции
type StateValidator struct {
	validTransitions map[State]map[State]bool
}

// NewStateValidator создает валидатор с матрицей переходов
func NewStateValidator() *StateValidator {
	sv := &StateValidator{validTransitions: make(map[State]map[State]bool)}
	sv.addTransition(StateIdle, StateInProgress)
	sv.addTransition(StateInProgress, StateCompleted)
	sv.addTransition(StateInProgress, StateFailed)
	// Из терминальных состояний переходы запрещены
	return sv
}

func (sv *StateValidator) addTransition(from, to State) {
	if sv.validTransitions[from] == nil {
		sv.validTransitions[from] = make(map[State]bool)
	}
	sv.validTransitions[from][to] = true
}

// ValidateTransition проверяет, является ли переход валидным
func (sv *StateValidator) ValidateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if transitions, exists := sv.validTransitions[from]; exists && transitions[to] {
		return nil
	}
	return fmt.Errorf("невалидный переход состояния транзакции: %s -> %s", from, to)
}

// Transaction открытая MGCP транзакция
type Transaction struct {
	id        int
	request   *message.Request
	outbound  bool // запрос порожден контроллером (NTFY)
	startedAt time.Time

	mu           sync.Mutex
	state        State
	lastResponse *message.Response
	timer        *time.Timer
	validator    *StateValidator
}

func newTransaction(id int, request *message.Request, outbound bool, validator *StateValidator) *Transaction {
	return &Transaction{
		id:        id,
		request:   request,
		outbound:  outbound,
		startedAt: time.Now(),
		state:     StateIdle,
		validator: validator,
	}
}

// ID идентификатор транзакции
func (t *Transaction) ID() int { return t.id }

// Request исходный запрос
func (t *Transaction) Request() *message.Request { return t.request }

// IsOutbound запрос порожден контроллером
func (t *Transaction) IsOutbound() bool { return t.outbound }

// StartedAt время регистрации
func (t *Transaction) StartedAt() time.Time { return t.startedAt }

// State текущее состояние
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// transitionTo переводит транзакцию в новое состояние с валидацией
func (t *Transaction) transitionTo(state State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.validator.ValidateTransition(t.state, state); err != nil {
		return err
	}
	t.state = state
	return nil
}

// setLastResponse запоминает ответ для подавления дубликатов
func (t *Transaction) setLastResponse(response *message.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastResponse = response
}

// LastResponse последний известный ответ (nil если еще нет)
func (t *Transaction) LastResponse() *message.Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastResponse
}

// setTimer регистрирует таймер тайм-аута транзакции
func (t *Transaction) setTimer(timer *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = timer
}

// stopTimer останавливает таймер тайм-аута
func (t *Transaction) stopTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
