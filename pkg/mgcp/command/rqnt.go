package command

import (
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// RequestNotification команда RQNT: активирует сигналы из параметра S:
// и запоминает request id для последующих NTFY. Пустой S: отменяет
// активные сигналы endpoint'а.
type RequestNotification struct {
	baseCommand
	signals *signal.Registry

	// Активированные сигналы для отката
	endpoint  *endpoint.Endpoint
	activated []signal.Signal
}

// Execute реализует Command
func (c *RequestNotification) Execute() (*Result, error) {
	requestID, err := c.requireParameter(message.ParameterRequestID)
	if err != nil {
		return nil, err
	}

	ep, err := c.resolveEndpoint()
	if err != nil {
		return nil, err
	}
	c.endpoint = ep

	requests, err := signal.ParseRequests(c.parameters.GetOr(message.ParameterSignalRequests, ""))
	if err != nil {
		return nil, NewError(message.CodeProtocolError, err.Error())
	}

	instances := make([]signal.Signal, 0, len(requests))
	for _, req := range requests {
		s, err := c.signals.Provide(req, ep.MediaGroup())
		if err != nil {
			return nil, err
		}
		instances = append(instances, s)
	}

	notifiedEntity := c.parameters.GetOr(message.ParameterNotifiedEntity, "")
	c.activated = instances
	if err := ep.RequestNotification(requestID, notifiedEntity, instances); err != nil {
		return nil, err
	}

	return c.okResult(message.CodeTransactionExecuted), nil
}

// Rollback отменяет активированные сигналы
func (c *RequestNotification) Rollback(transactionID, code int, msg string) *Result {
	for _, s := range c.activated {
		s.Cancel()
	}
	return c.rollbackResult(transactionID, code, msg)
}

// Reset очищает состояние команды
func (c *RequestNotification) Reset() {
	c.endpoint = nil
	c.activated = nil
}
