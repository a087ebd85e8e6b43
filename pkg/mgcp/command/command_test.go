package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// scriptedCommand управляемая команда для проверки протокола Call
type scriptedCommand struct {
	tx int

	executeResult *Result
	executeErr    error
	executePanic  bool

	rollbackResult *Result
	rollbackPanic  bool

	executeCalls  int
	rollbackCalls int
	resetCalls    int
	rollbackCode  int
}

func (c *scriptedCommand) TransactionID() int { return c.tx }

func (c *scriptedCommand) Execute() (*Result, error) {
	c.executeCalls++
	if c.executePanic {
		panic("execute panic")
	}
	return c.executeResult, c.executeErr
}

func (c *scriptedCommand) Rollback(transactionID, code int, msg string) *Result {
	c.rollbackCalls++
	c.rollbackCode = code
	if c.rollbackPanic {
		panic("rollback panic")
	}
	if c.rollbackResult != nil {
		return c.rollbackResult
	}
	return &Result{TransactionID: transactionID, Code: code, Message: msg}
}

func (c *scriptedCommand) Reset() { c.resetCalls++ }

func TestCallSuccessRunsResetOnce(t *testing.T) {
	cmd := &scriptedCommand{
		tx:            7,
		executeResult: &Result{TransactionID: 7, Code: 200},
	}

	result := Call(cmd, logging.NoOpLogger{})
	require.NotNil(t, result)
	assert.Equal(t, 200, result.Code)
	assert.Equal(t, 1, cmd.executeCalls)
	assert.Equal(t, 0, cmd.rollbackCalls)
	assert.Equal(t, 1, cmd.resetCalls, "reset выполняется ровно один раз")
}

func TestCallErrorTriggersRollback(t *testing.T) {
	cmd := &scriptedCommand{
		tx:         7,
		executeErr: NewError(message.CodeSignalBusy, "busy"),
	}

	result := Call(cmd, logging.NoOpLogger{})
	require.NotNil(t, result)
	assert.Equal(t, message.CodeSignalBusy, result.Code)
	assert.Equal(t, 1, cmd.rollbackCalls)
	assert.Equal(t, message.CodeSignalBusy, cmd.rollbackCode)
	assert.Equal(t, 1, cmd.resetCalls)
}

func TestCallWrapsUnknownErrorAs500(t *testing.T) {
	cmd := &scriptedCommand{
		tx:         7,
		executeErr: errors.New("произвольный отказ"),
	}

	result := Call(cmd, logging.NoOpLogger{})
	require.NotNil(t, result)
	assert.Equal(t, message.CodeEndpointUnknown, result.Code)
	assert.Equal(t, 1, cmd.rollbackCalls)
	assert.Equal(t, 1, cmd.resetCalls)
}

func TestCallRecoveredPanicTriggersRollback(t *testing.T) {
	cmd := &scriptedCommand{tx: 7, executePanic: true}

	var result *Result
	require.NotPanics(t, func() {
		result = Call(cmd, logging.NoOpLogger{})
	})
	require.NotNil(t, result)
	assert.Equal(t, message.CodeEndpointUnknown, result.Code)
	assert.Equal(t, 1, cmd.rollbackCalls)
	assert.Equal(t, 1, cmd.resetCalls)
}

func TestCallRollbackPanicSynthesizes500(t *testing.T) {
	cmd := &scriptedCommand{
		tx:            7,
		executeErr:    NewError(message.CodeProtocolError, "bad"),
		rollbackPanic: true,
	}

	var result *Result
	require.NotPanics(t, func() {
		result = Call(cmd, logging.NoOpLogger{})
	})
	require.NotNil(t, result, "результат никогда не nil")
	assert.Equal(t, message.CodeEndpointUnknown, result.Code)
	assert.Equal(t, 1, cmd.resetCalls)
}

func TestCallNilResultSynthesized(t *testing.T) {
	cmd := &scriptedCommand{tx: 7}

	result := Call(cmd, logging.NoOpLogger{})
	require.NotNil(t, result)
	assert.Equal(t, message.CodeEndpointUnknown, result.Code)
	assert.Equal(t, 1, cmd.resetCalls)
}

func TestWrapErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{endpoint.ErrEndpointUnknown, message.CodeEndpointUnknown},
		{endpoint.ErrEndpointNotReady, message.CodeEndpointNotReady},
		{endpoint.ErrNoEndpointAvailable, message.CodeNoResourcesAvailable},
		{endpoint.ErrSignalBusy, message.CodeSignalBusy},
		{signal.ErrUnknownPackage, message.CodeUnknownExtension},
		{signal.ErrUnknownSignal, message.CodeNoSuchEventSignal},
		{signal.ErrUnknownParameter, message.CodeUnknownParameter},
		{signal.ErrBadParameter, message.CodeProtocolError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, WrapError(tc.err).Code, tc.err.Error())
	}
}
