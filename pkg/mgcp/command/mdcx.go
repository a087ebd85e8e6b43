package command

import (
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// ModifyConnection команда MDCX: изменяет режим и/или remote
// description существующего соединения
type ModifyConnection struct {
	baseCommand

	// Прежние значения для отката
	connection *endpoint.Connection
	prevMode   endpoint.ConnectionMode
	prevRemote string
	modified   bool
}

// Execute реализует Command
func (c *ModifyConnection) Execute() (*Result, error) {
	connectionID, err := c.requireParameter(message.ParameterConnectionID)
	if err != nil {
		return nil, err
	}
	if _, err = c.requireParameter(message.ParameterCallID); err != nil {
		return nil, err
	}

	ep, err := c.resolveEndpoint()
	if err != nil {
		return nil, err
	}
	conn, err := ep.Connection(connectionID)
	if err != nil {
		return nil, err
	}
	c.connection = conn
	c.prevMode = conn.Mode
	c.prevRemote = conn.RemoteSDP

	var mode *endpoint.ConnectionMode
	if raw, ok := c.parameters.Get(message.ParameterConnectionMode); ok {
		parsed, err := endpoint.ParseConnectionMode(raw)
		if err != nil {
			return nil, NewError(message.CodeProtocolError, err.Error())
		}
		mode = &parsed
	}

	if _, err = ep.ModifyConnection(connectionID, mode, c.sdp); err != nil {
		return nil, NewError(message.CodeProtocolError, err.Error())
	}
	c.modified = true

	result := c.okResult(message.CodeTransactionExecuted)
	result.Parameters[message.ParameterConnectionID] = conn.ID
	result.SDP = conn.LocalSDP
	return result, nil
}

// Rollback восстанавливает прежние режим и remote description
func (c *ModifyConnection) Rollback(transactionID, code int, msg string) *Result {
	if c.modified && c.connection != nil {
		c.connection.Mode = c.prevMode
		// Прежнее описание уже проходило валидацию
		_ = c.connection.SetRemoteDescription(c.prevRemote)
	}
	return c.rollbackResult(transactionID, code, msg)
}

// Reset очищает состояние команды
func (c *ModifyConnection) Reset() {
	c.connection = nil
	c.prevMode = ""
	c.prevRemote = ""
	c.modified = false
}
