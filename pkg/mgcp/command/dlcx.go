package command

import (
	"strconv"

	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// DeleteConnection команда DLCX: удаляет соединения endpoint'а.
//
// Формы запроса:
//   - с параметром I: удаляется одно соединение;
//   - с параметром C: без I: — все соединения вызова;
//   - без I: и C: — все соединения endpoint'а;
//   - wildcard * — удаление по всем подходящим endpoint'ам.
//
// Удаление необратимо, откату подлежит только неприменившаяся команда.
type DeleteConnection struct {
	baseCommand
}

// Execute реализует Command
func (c *DeleteConnection) Execute() (*Result, error) {
	connectionID, _ := c.parameters.Get(message.ParameterConnectionID)
	callID, _ := c.parameters.Get(message.ParameterCallID)

	if c.endpointID.IsWildcardAny() {
		return nil, NewError(message.CodeProtocolError, "wildcard $ недопустим для DLCX")
	}

	deleted := 0
	if c.endpointID.IsWildcardAll() {
		if connectionID != "" {
			return nil, NewError(message.CodeProtocolError, "параметр I: несовместим с wildcard *")
		}
		for _, ep := range c.endpoints.Match(c.endpointID) {
			deleted += ep.DeleteConnections(callID)
		}
	} else {
		ep, err := c.endpoints.Lookup(c.endpointID)
		if err != nil {
			return nil, err
		}
		if connectionID != "" {
			if err := ep.DeleteConnection(connectionID); err != nil {
				return nil, err
			}
			deleted = 1
		} else {
			deleted = ep.DeleteConnections(callID)
		}
	}

	result := c.okResult(message.CodeConnectionDeleted)
	result.Parameters[message.ParameterConnectionParams] = "ND=" + strconv.Itoa(deleted)
	return result, nil
}

// Rollback для DLCX нечего откатывать: до первого удаления эффектов нет,
// а ошибок после него не возникает
func (c *DeleteConnection) Rollback(transactionID, code int, msg string) *Result {
	return c.rollbackResult(transactionID, code, msg)
}

// Reset реализует Command
func (c *DeleteConnection) Reset() {}
