package transaction

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/command"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// stubCommand команда с управляемым исполнением
type stubCommand struct {
	tx      int
	code    int
	block   chan struct{} // если не nil, Execute ждет закрытия
	resets  int
}

func (c *stubCommand) TransactionID() int { return c.tx }

func (c *stubCommand) Execute() (*command.Result, error) {
	if c.block != nil {
		<-c.block
	}
	return &command.Result{TransactionID: c.tx, Code: c.code}, nil
}

func (c *stubCommand) Rollback(transactionID, code int, msg string) *command.Result {
	return &command.Result{TransactionID: transactionID, Code: code, Message: msg}
}

func (c *stubCommand) Reset() { c.resets++ }

// stubProvider провайдер, выдающий заранее заданные команды
type stubProvider struct {
	mu       sync.Mutex
	code     int
	err      error
	block    chan struct{}
	provided []*stubCommand
}

func (p *stubProvider) Provide(request *message.Request) (command.Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	code := p.code
	if code == 0 {
		code = message.CodeTransactionExecuted
	}
	cmd := &stubCommand{tx: request.Transaction, code: code, block: p.block}
	p.provided = append(p.provided, cmd)
	return cmd, nil
}

// outRecorder потокобезопасный сборщик исходящих сообщений медиатора
type outRecorder struct {
	mu       sync.Mutex
	messages []message.Message
}

func (r *outRecorder) OnMessage(msg message.Message, direction message.Direction) {
	if direction != message.Outgoing {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *outRecorder) snapshot() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Message(nil), r.messages...)
}

func (r *outRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func newTestMediator(t *testing.T, provider command.Provider, timeout time.Duration) (*Mediator, *outRecorder) {
	t.Helper()
	m := NewMediator(provider, Config{Timeout: timeout, Workers: 2}, logging.NoOpLogger{}, nil)
	t.Cleanup(m.Stop)
	recorder := &outRecorder{}
	m.Observe(recorder)
	return m, recorder
}

func incomingRequest(tx int) *message.Request {
	return &message.Request{
		Verb:        message.VerbRequestNotification,
		Transaction: tx,
		Endpoint:    message.EndpointID{Local: "aaln/1", Domain: "mgw.local"},
		Parameters:  message.Parameters{message.ParameterRequestID: "1"},
	}
}

func TestMediatorDispatchesAndNotifiesResponse(t *testing.T) {
	provider := &stubProvider{}
	m, recorder := newTestMediator(t, provider, time.Second)

	m.OnMessage(incomingRequest(100), message.Incoming)

	require.Eventually(t, func() bool { return recorder.count() == 1 },
		time.Second, 5*time.Millisecond)

	response, ok := recorder.snapshot()[0].(*message.Response)
	require.True(t, ok)
	assert.Equal(t, 100, response.Transaction)
	assert.Equal(t, message.CodeTransactionExecuted, response.Code)
	assert.Zero(t, m.OpenTransactions(), "транзакция вытеснена после завершения")
	require.Len(t, provider.provided, 1)
	assert.Equal(t, 1, provider.provided[0].resets)
}

func TestMediatorSuppressesDuplicateOfLiveTransaction(t *testing.T) {
	block := make(chan struct{})
	provider := &stubProvider{block: block}
	m, recorder := newTestMediator(t, provider, time.Second)

	m.OnMessage(incomingRequest(200), message.Incoming)
	// Дубликат пока команда исполняется: ответа еще нет, дубликат отброшен
	m.OnMessage(incomingRequest(200), message.Incoming)

	assert.Equal(t, 1, m.OpenTransactions())
	close(block)

	require.Eventually(t, func() bool { return recorder.count() == 1 },
		time.Second, 5*time.Millisecond)
	require.Len(t, provider.provided, 1, "команда создается один раз")
}

func TestMediatorReplaysResponseForCompletedDuplicate(t *testing.T) {
	provider := &stubProvider{}
	m, recorder := newTestMediator(t, provider, time.Second)

	m.OnMessage(incomingRequest(300), message.Incoming)
	require.Eventually(t, func() bool { return recorder.count() == 1 },
		time.Second, 5*time.Millisecond)

	// Дубликат после завершения: ответ повторяется из LRU буфера
	m.OnMessage(incomingRequest(300), message.Incoming)
	require.Eventually(t, func() bool { return recorder.count() == 2 },
		time.Second, 5*time.Millisecond)

	first := recorder.snapshot()[0].(*message.Response)
	second := recorder.snapshot()[1].(*message.Response)
	assert.Equal(t, first.Code, second.Code)
	require.Len(t, provider.provided, 1, "повторного исполнения нет")
}

func TestMediatorTransactionTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	provider := &stubProvider{block: block}
	m, recorder := newTestMediator(t, provider, 50*time.Millisecond)

	m.OnMessage(incomingRequest(400), message.Incoming)

	require.Eventually(t, func() bool { return recorder.count() == 1 },
		time.Second, 5*time.Millisecond)
	response := recorder.snapshot()[0].(*message.Response)
	assert.Equal(t, message.CodeTransientError, response.Code)
	assert.Zero(t, m.OpenTransactions())
}

func TestMediatorProviderErrorProducesFailureResponse(t *testing.T) {
	provider := &stubProvider{err: command.NewError(message.CodeProtocolError, "bad verb")}
	m, recorder := newTestMediator(t, provider, time.Second)

	m.OnMessage(incomingRequest(500), message.Incoming)

	require.Eventually(t, func() bool { return recorder.count() == 1 },
		time.Second, 5*time.Millisecond)
	response := recorder.snapshot()[0].(*message.Response)
	assert.Equal(t, message.CodeProtocolError, response.Code)
}

func TestMediatorDropsOrphanResponse(t *testing.T) {
	provider := &stubProvider{}
	m, recorder := newTestMediator(t, provider, time.Second)

	m.OnMessage(&message.Response{Transaction: 999, Code: 200}, message.Incoming)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, recorder.count(), "ответ без транзакции отбрасывается")
}

func TestMediatorAssignsOutboundTransactionID(t *testing.T) {
	provider := &stubProvider{}
	m, recorder := newTestMediator(t, provider, time.Second)

	ntfy := &message.Request{
		Verb:     message.VerbNotify,
		Endpoint: message.EndpointID{Local: "aaln/1", Domain: "mgw.local"},
		Parameters: message.Parameters{
			message.ParameterObservedEvents: "AU/pc(rc=100)",
		},
	}
	m.OnMessage(ntfy, message.Outgoing)

	require.Eventually(t, func() bool { return recorder.count() == 1 },
		time.Second, 5*time.Millisecond)
	sent := recorder.snapshot()[0].(*message.Request)
	assert.Greater(t, sent.Transaction, outboundTransactionBase)
	assert.Equal(t, 1, m.OpenTransactions(), "исходящая транзакция ждет ответа")

	// Ответ call agent'а закрывает транзакцию
	m.OnMessage(&message.Response{Transaction: sent.Transaction, Code: 200}, message.Incoming)
	assert.Zero(t, m.OpenTransactions())
}

func TestMediatorRejectsNonPositiveTransactionID(t *testing.T) {
	provider := &stubProvider{}
	m, recorder := newTestMediator(t, provider, time.Second)

	m.OnMessage(incomingRequest(0), message.Incoming)
	m.OnMessage(incomingRequest(-5), message.Incoming)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, recorder.count())
	assert.Zero(t, m.OpenTransactions())
}

func TestCompletedBufferEvictsOldest(t *testing.T) {
	buffer := newCompletedBuffer(3)
	for i := 1; i <= 4; i++ {
		buffer.put(i, &message.Response{Transaction: i, Code: 200})
	}

	assert.Equal(t, 3, buffer.len())
	_, ok := buffer.get(1)
	assert.False(t, ok, "старейшая запись вытеснена")
	for i := 2; i <= 4; i++ {
		_, ok := buffer.get(i)
		assert.True(t, ok)
	}
}

func TestCompletedBufferLRUTouch(t *testing.T) {
	buffer := newCompletedBuffer(2)
	buffer.put(1, &message.Response{Transaction: 1})
	buffer.put(2, &message.Response{Transaction: 2})

	// Обращение освежает запись 1, вытесняется 2
	buffer.get(1)
	buffer.put(3, &message.Response{Transaction: 3})

	_, ok := buffer.get(2)
	assert.False(t, ok)
	_, ok = buffer.get(1)
	assert.True(t, ok)
}

func TestStateValidatorTransitions(t *testing.T) {
	v := NewStateValidator()

	require.NoError(t, v.ValidateTransition(StateIdle, StateInProgress))
	require.NoError(t, v.ValidateTransition(StateInProgress, StateCompleted))
	require.NoError(t, v.ValidateTransition(StateInProgress, StateFailed))

	assert.Error(t, v.ValidateTransition(StateIdle, StateCompleted))
	assert.Error(t, v.ValidateTransition(StateCompleted, StateInProgress))
	assert.Error(t, v.ValidateTransition(StateFailed, StateInProgress))
}
