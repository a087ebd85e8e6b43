package command

import (
	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// CreateConnection команда CRCX: создает соединение на endpoint'е.
// Wildcard $ аллоцирует свободный endpoint, его конкретный
// идентификатор возвращается в параметре Z:.
type CreateConnection struct {
	baseCommand

	// Частично примененные эффекты для отката
	endpoint   *endpoint.Endpoint
	connection *endpoint.Connection
	allocated  bool
}

// Execute реализует Command
func (c *CreateConnection) Execute() (*Result, error) {
	callID, err := c.requireParameter(message.ParameterCallID)
	if err != nil {
		return nil, err
	}

	mode := endpoint.ModeSendRecv
	if raw, ok := c.parameters.Get(message.ParameterConnectionMode); ok {
		if mode, err = endpoint.ParseConnectionMode(raw); err != nil {
			return nil, NewError(message.CodeProtocolError, err.Error())
		}
	}

	switch {
	case c.endpointID.IsWildcardAll():
		return nil, NewError(message.CodeProtocolError, "wildcard * недопустим для CRCX")
	case c.endpointID.IsWildcardAny():
		if c.endpoint, err = c.endpoints.Allocate(c.endpointID); err != nil {
			return nil, err
		}
		c.allocated = true
	default:
		if c.endpoint, err = c.endpoints.Lookup(c.endpointID); err != nil {
			return nil, err
		}
	}

	if c.connection, err = c.endpoint.CreateConnection(callID, mode, c.sdp); err != nil {
		return nil, NewError(message.CodeProtocolError, err.Error())
	}

	result := c.okResult(message.CodeConnectionCreated)
	result.Parameters[message.ParameterConnectionID] = c.connection.ID
	if c.allocated {
		result.Parameters[message.ParameterSpecificEndpointID] = c.endpoint.ID().String()
	}
	result.SDP = c.connection.LocalSDP
	return result, nil
}

// Rollback удаляет созданное соединение
func (c *CreateConnection) Rollback(transactionID, code int, msg string) *Result {
	if c.endpoint != nil && c.connection != nil {
		if err := c.endpoint.DeleteConnection(c.connection.ID); err != nil {
			c.logger.Warn("откат CRCX: соединение уже удалено", logging.Err(err))
		}
	}
	return c.rollbackResult(transactionID, code, msg)
}

// Reset очищает состояние команды
func (c *CreateConnection) Reset() {
	c.endpoint = nil
	c.connection = nil
	c.allocated = false
}
