package subject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// recordingObserver запоминает полученные сообщения
type recordingObserver struct {
	name     string
	received []message.Message
	onNotify func(msg message.Message, direction message.Direction)
}

func (o *recordingObserver) OnMessage(msg message.Message, direction message.Direction) {
	o.received = append(o.received, msg)
	if o.onNotify != nil {
		o.onNotify(msg, direction)
	}
}

func testRequest(tx int) *message.Request {
	return &message.Request{
		Verb:        message.VerbRequestNotification,
		Transaction: tx,
		Endpoint:    message.EndpointID{Local: "aaln/1", Domain: "mgw.local"},
		Parameters:  message.Parameters{},
	}
}

func TestNotifyPreservesRegistrationOrder(t *testing.T) {
	s := NewBasic(logging.NoOpLogger{})

	var order []string
	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	c := &recordingObserver{name: "c"}
	for _, o := range []*recordingObserver{a, b, c} {
		obs := o
		obs.onNotify = func(message.Message, message.Direction) {
			order = append(order, obs.name)
		}
		s.Observe(obs)
	}

	s.Notify(testRequest(1), message.Incoming)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestNotifyDeliversExactlyOnce(t *testing.T) {
	s := NewBasic(logging.NoOpLogger{})
	o := &recordingObserver{}
	s.Observe(o)
	// Повторная регистрация не дублирует доставку
	s.Observe(o)

	s.Notify(testRequest(1), message.Incoming)
	require.Len(t, o.received, 1)
}

func TestForgetStopsDelivery(t *testing.T) {
	s := NewBasic(logging.NoOpLogger{})
	a := &recordingObserver{}
	b := &recordingObserver{}
	s.Observe(a)
	s.Observe(b)
	s.Forget(a)

	s.Notify(testRequest(1), message.Incoming)
	assert.Empty(t, a.received)
	assert.Len(t, b.received, 1)
}

func TestMutationDuringNotifyDoesNotAffectFanOut(t *testing.T) {
	s := NewBasic(logging.NoOpLogger{})

	late := &recordingObserver{name: "late"}
	b := &recordingObserver{name: "b"}
	a := &recordingObserver{name: "a"}
	a.onNotify = func(message.Message, message.Direction) {
		// Мутации во время рассылки не влияют на текущий fan-out
		s.Observe(late)
		s.Forget(b)
	}
	s.Observe(a)
	s.Observe(b)

	s.Notify(testRequest(1), message.Incoming)
	assert.Len(t, a.received, 1)
	assert.Len(t, b.received, 1, "b был зарегистрирован на входе в Notify")
	assert.Empty(t, late.received, "late добавлен во время рассылки")

	s.Notify(testRequest(2), message.Incoming)
	assert.Len(t, late.received, 1)
	assert.Len(t, b.received, 1, "b снят с регистрации")
}

func TestObserverPanicDoesNotStopFanOut(t *testing.T) {
	s := NewBasic(logging.NoOpLogger{})

	panicking := &recordingObserver{}
	panicking.onNotify = func(message.Message, message.Direction) {
		panic("observer failure")
	}
	after := &recordingObserver{}
	s.Observe(panicking)
	s.Observe(after)

	require.NotPanics(t, func() {
		s.Notify(testRequest(1), message.Incoming)
	})
	assert.Len(t, after.received, 1)
}

func TestReentrantNotify(t *testing.T) {
	s := NewBasic(logging.NoOpLogger{})

	b := &recordingObserver{}
	a := &recordingObserver{}
	a.onNotify = func(msg message.Message, _ message.Direction) {
		if msg.TransactionID() == 1 {
			s.Notify(testRequest(2), message.Incoming)
		}
	}
	s.Observe(a)
	s.Observe(b)

	s.Notify(testRequest(1), message.Incoming)
	require.Len(t, a.received, 2)
	require.Len(t, b.received, 2)
	// Вложенная рассылка завершается до продолжения внешней
	assert.Equal(t, 1, a.received[0].TransactionID())
	assert.Equal(t, 2, a.received[1].TransactionID())
	assert.Equal(t, 2, b.received[0].TransactionID())
	assert.Equal(t, 1, b.received[1].TransactionID())
}
