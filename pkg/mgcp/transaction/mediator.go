package transaction

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/command"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/subject"
)

// DefaultTransactionTimeout тайм-аут транзакции по умолчанию
const DefaultTransactionTimeout = 30 * time.Second

// outboundTransactionBase начало диапазона id исходящих транзакций.
// Контроллер назначает id порожденным NTFY из верхнего диапазона,
// чтобы не пересекаться с id call agent'а.
const outboundTransactionBase = 100000000

// Config конфигурация медиатора
type Config struct {
	// Timeout тайм-аут транзакции (по умолчанию 30 секунд)
	Timeout time.Duration
	// Workers размер пула исполнителей команд
	Workers int
	// CompletedBufferSize размер LRU буфера завершенных транзакций
	CompletedBufferSize int
}

// Mediator транзакционный медиатор: связывает входящие запросы с
// транзакциями, диспетчеризует команды и коррелирует ответы.
//
// Медиатор наблюдает endpoint'ы (исходящие NTFY) и транспорт (входящие
// запросы и ответы); сам является Subject'ом, через который транспорт
// получает исходящие сообщения.
//
// Жизненный цикл транзакции: IDLE → IN_PROGRESS → (COMPLETED | FAILED),
// затем запись вытесняется в LRU буфер для подавления дубликатов.
type Mediator struct {
	*subject.Basic

	provider  command.Provider
	logger    logging.Logger
	metrics   *Metrics
	timeout   time.Duration
	validator *StateValidator
	pool      *workerPool

	mu           sync.Mutex
	transactions map[int]*Transaction
	completed    *completedBuffer

	outboundSeq atomic.Int64
}

// NewMediator создает медиатор.
// metrics может быть nil: сбор метрик выключен.
func NewMediator(provider command.Provider, cfg Config, logger logging.Logger, metrics *Metrics) *Mediator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTransactionTimeout
	}
	m := &Mediator{
		Basic:        subject.NewBasic(logger),
		provider:     provider,
		logger:       logger.WithComponent("mediator"),
		metrics:      metrics,
		timeout:      cfg.Timeout,
		validator:    NewStateValidator(),
		pool:         newWorkerPool(cfg.Workers),
		transactions: make(map[int]*Transaction),
		completed:    newCompletedBuffer(cfg.CompletedBufferSize),
	}
	m.outboundSeq.Store(outboundTransactionBase)
	return m
}

// Stop останавливает пул исполнителей
func (m *Mediator) Stop() {
	m.pool.Stop()
}

// OpenTransactions текущее число открытых транзакций
func (m *Mediator) OpenTransactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// OnMessage реализует subject.Observer
func (m *Mediator) OnMessage(msg message.Message, direction message.Direction) {
	switch direction {
	case message.Incoming:
		switch v := msg.(type) {
		case *message.Request:
			m.handleIncomingRequest(v)
		case *message.Response:
			m.handleIncomingResponse(v)
		}
	case message.Outgoing:
		if req, ok := msg.(*message.Request); ok {
			m.handleOutgoingRequest(req)
		}
	}
}

// handleIncomingRequest регистрирует транзакцию и диспетчеризует команду
func (m *Mediator) handleIncomingRequest(request *message.Request) {
	id := request.Transaction
	if id <= 0 {
		m.logger.Warn("запрос с некорректным id транзакции отброшен",
			logging.Int("transaction", id))
		return
	}

	m.mu.Lock()
	if live, exists := m.transactions[id]; exists {
		m.mu.Unlock()
		m.metrics.duplicateSuppressed()
		// Дубликат живой транзакции: повторяем последний ответ если есть
		if last := live.LastResponse(); last != nil {
			m.Notify(last, message.Outgoing)
		} else {
			m.logger.Debug("дубликат запроса отброшен", logging.Int("transaction", id))
		}
		return
	}
	if cached, ok := m.completed.get(id); ok {
		m.mu.Unlock()
		m.metrics.duplicateSuppressed()
		m.Notify(cached, message.Outgoing)
		return
	}

	tx := newTransaction(id, request, false, m.validator)
	m.transactions[id] = tx
	m.mu.Unlock()

	if err := tx.transitionTo(StateInProgress); err != nil {
		m.logger.Error("ошибка перехода транзакции", logging.Err(err))
	}
	m.metrics.transactionRegistered(request.Verb.String())
	m.scheduleTimeout(tx)

	m.logger.Debug("транзакция зарегистрирована",
		logging.Int("transaction", id),
		logging.String("verb", request.Verb.String()))

	cmd, err := m.provider.Provide(request)
	if err != nil {
		cmdErr := command.WrapError(err)
		m.completeTransaction(tx, &message.Response{
			Transaction: id,
			Code:        cmdErr.Code,
			Comment:     cmdErr.Message,
		}, StateFailed)
		return
	}

	if !m.pool.Submit(func() { m.executeCommand(tx, cmd) }) {
		m.completeTransaction(tx, &message.Response{
			Transaction: id,
			Code:        message.CodeTransientError,
			Comment:     "контроллер останавливается",
		}, StateFailed)
	}
}

// executeCommand исполняет команду и завершает транзакцию ответом
func (m *Mediator) executeCommand(tx *Transaction, cmd command.Command) {
	result := command.Call(cmd, m.logger)
	response := result.Response()
	state := StateCompleted
	if !message.IsSuccessful(response.Code) {
		state = StateFailed
	}
	m.completeTransaction(tx, response, state)
}

// completeTransaction завершает транзакцию и рассылает ответ OUT
func (m *Mediator) completeTransaction(tx *Transaction, response *message.Response, state State) {
	m.mu.Lock()
	current, exists := m.transactions[tx.ID()]
	if !exists || current != tx {
		// Транзакция уже завершена (например, по тайм-ауту)
		m.mu.Unlock()
		return
	}
	delete(m.transactions, tx.ID())
	m.mu.Unlock()

	tx.stopTimer()
	tx.setLastResponse(response)
	if err := tx.transitionTo(state); err != nil {
		m.logger.Error("ошибка перехода транзакции", logging.Err(err))
	}
	m.completed.put(tx.ID(), response)
	m.metrics.transactionCompleted(response.Code, tx.StartedAt())

	m.logger.Debug("транзакция завершена",
		logging.Int("transaction", tx.ID()),
		logging.Int("code", response.Code),
		logging.String("state", state.String()))

	m.Notify(response, message.Outgoing)
}

// scheduleTimeout планирует завершение транзакции по тайм-ауту (406)
func (m *Mediator) scheduleTimeout(tx *Transaction) {
	tx.setTimer(time.AfterFunc(m.timeout, func() {
		m.metrics.transactionTimedOut()
		m.logger.Warn("тайм-аут транзакции", logging.Int("transaction", tx.ID()))
		if tx.IsOutbound() {
			m.evictOutbound(tx)
			return
		}
		m.completeTransaction(tx, &message.Response{
			Transaction: tx.ID(),
			Code:        message.CodeTransientError,
			Comment:     "тайм-аут транзакции",
		}, StateFailed)
	}))
}

// handleIncomingResponse коррелирует ответ с исходящей транзакцией
func (m *Mediator) handleIncomingResponse(response *message.Response) {
	if message.IsProvisional(response.Code) {
		return
	}

	m.mu.Lock()
	tx, exists := m.transactions[response.Transaction]
	if exists && tx.IsOutbound() {
		delete(m.transactions, response.Transaction)
	}
	m.mu.Unlock()

	if !exists || !tx.IsOutbound() {
		m.metrics.orphanResponseDropped()
		m.logger.Warn("ответ без соответствующей транзакции отброшен",
			logging.Int("transaction", response.Transaction),
			logging.Int("code", response.Code))
		return
	}

	tx.stopTimer()
	tx.setLastResponse(response)
	state := StateCompleted
	if !message.IsSuccessful(response.Code) {
		state = StateFailed
	}
	if err := tx.transitionTo(state); err != nil {
		m.logger.Error("ошибка перехода транзакции", logging.Err(err))
	}
	m.metrics.transactionCompleted(response.Code, tx.StartedAt())
	m.logger.Debug("исходящая транзакция завершена",
		logging.Int("transaction", tx.ID()),
		logging.Int("code", response.Code))
}

// evictOutbound удаляет исходящую транзакцию, не получившую ответа
func (m *Mediator) evictOutbound(tx *Transaction) {
	m.mu.Lock()
	current, exists := m.transactions[tx.ID()]
	if exists && current == tx {
		delete(m.transactions, tx.ID())
	}
	m.mu.Unlock()
	if err := tx.transitionTo(StateFailed); err != nil {
		m.logger.Error("ошибка перехода транзакции", logging.Err(err))
	}
	m.metrics.transactionCompleted(message.CodeTransientError, tx.StartedAt())
}

// handleOutgoingRequest регистрирует порожденный контроллером запрос
// (NTFY от endpoint'а), назначает id транзакции и рассылает его OUT
func (m *Mediator) handleOutgoingRequest(request *message.Request) {
	if request.Transaction == 0 {
		request.Transaction = int(m.outboundSeq.Add(1))
	}

	tx := newTransaction(request.Transaction, request, true, m.validator)
	m.mu.Lock()
	if _, exists := m.transactions[request.Transaction]; exists {
		m.mu.Unlock()
		m.logger.Error("коллизия id исходящей транзакции",
			logging.Int("transaction", request.Transaction))
		return
	}
	m.transactions[request.Transaction] = tx
	m.mu.Unlock()

	if err := tx.transitionTo(StateInProgress); err != nil {
		m.logger.Error("ошибка перехода транзакции", logging.Err(err))
	}
	m.metrics.transactionRegistered(request.Verb.String())
	m.scheduleTimeout(tx)

	m.logger.Debug("исходящий запрос зарегистрирован",
		logging.Int("transaction", request.Transaction),
		logging.String("verb", request.Verb.String()))

	m.Notify(request, message.Outgoing)
}
