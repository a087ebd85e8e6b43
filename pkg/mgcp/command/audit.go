package command

import (
	"strconv"
	"strings"

	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// AuditEndpoint команда AUEP: аудит состояния endpoint'а.
// Wildcard * возвращает список идентификаторов в параметре Z:.
type AuditEndpoint struct {
	baseCommand
}

// Execute реализует Command
func (c *AuditEndpoint) Execute() (*Result, error) {
	if c.endpointID.IsWildcardAny() {
		return nil, NewError(message.CodeProtocolError, "wildcard $ недопустим для AUEP")
	}

	result := c.okResult(message.CodeTransactionExecuted)
	if c.endpointID.IsWildcardAll() {
		ids := make([]string, 0)
		for _, ep := range c.endpoints.Match(c.endpointID) {
			ids = append(ids, ep.ID().String())
		}
		result.Parameters[message.ParameterSpecificEndpointID] = strings.Join(ids, ",")
		return result, nil
	}

	ep, err := c.endpoints.Lookup(c.endpointID)
	if err != nil {
		return nil, err
	}
	result.Parameters[message.ParameterSpecificEndpointID] = ep.ID().String()
	result.Parameters[message.ParameterConnectionParams] = "NC=" + strconv.Itoa(ep.ConnectionCount())
	return result, nil
}

// Rollback аудит не имеет эффектов
func (c *AuditEndpoint) Rollback(transactionID, code int, msg string) *Result {
	return c.rollbackResult(transactionID, code, msg)
}

// Reset реализует Command
func (c *AuditEndpoint) Reset() {}

// AuditConnection команда AUCX: аудит параметров соединения
type AuditConnection struct {
	baseCommand
}

// Execute реализует Command
func (c *AuditConnection) Execute() (*Result, error) {
	connectionID, err := c.requireParameter(message.ParameterConnectionID)
	if err != nil {
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

	result := c.okResult(message.CodeTransactionExecuted)
	result.Parameters[message.ParameterCallID] = conn.CallID
	result.Parameters[message.ParameterConnectionMode] = string(conn.Mode)
	result.SDP = conn.LocalSDP
	return result, nil
}

// Rollback аудит не имеет эффектов
func (c *AuditConnection) Rollback(transactionID, code int, msg string) *Result {
	return c.rollbackResult(transactionID, code, msg)
}

// Reset реализует Command
func (c *AuditConnection) Reset() {}
