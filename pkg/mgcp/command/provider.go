package command

import (
	"fmt"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// Provider создает команду по разобранному запросу
type Provider interface {
	Provide(request *message.Request) (Command, error)
}

// baseCommand общее состояние конкретных команд
type baseCommand struct {
	transactionID int
	endpointID    message.EndpointID
	parameters    message.Parameters
	sdp           string
	endpoints     *endpoint.Registry
	logger        logging.Logger
}

func (b *baseCommand) TransactionID() int { return b.transactionID }

// requireParameter возвращает обязательный параметр или ошибку 510
func (b *baseCommand) requireParameter(t message.ParameterType) (string, error) {
	value, ok := b.parameters.Get(t)
	if !ok || value == "" {
		return "", NewError(message.CodeProtocolError,
			fmt.Sprintf("отсутствует обязательный параметр %s", t))
	}
	return value, nil
}

// resolveEndpoint разрешает конкретный endpoint (wildcard запрещены)
func (b *baseCommand) resolveEndpoint() (*endpoint.Endpoint, error) {
	if b.endpointID.IsWildcardAll() || b.endpointID.IsWildcardAny() {
		return nil, NewError(message.CodeProtocolError,
			fmt.Sprintf("wildcard недопустим для этой команды: %s", b.endpointID))
	}
	return b.endpoints.Lookup(b.endpointID)
}

// okResult результат успешного исполнения
func (b *baseCommand) okResult(code int) *Result {
	return &Result{
		TransactionID: b.transactionID,
		Code:          code,
		Parameters:    message.Parameters{},
	}
}

// rollbackResult результат отката с кодом ошибки execute
func (b *baseCommand) rollbackResult(transactionID, code int, msg string) *Result {
	return &Result{TransactionID: transactionID, Code: code, Message: msg}
}

// BaseProvider провайдер команд контроллера, индексированный по verb.
// Неизвестный verb отклоняется парсером до обращения к провайдеру;
// известные, но не принимаемые контроллером команды (NTFY, RSIP —
// их контроллер только отправляет) получают 502.
type BaseProvider struct {
	endpoints *endpoint.Registry
	signals   *signal.Registry
	logger    logging.Logger
}

// NewProvider создает провайдер команд
func NewProvider(endpoints *endpoint.Registry, signals *signal.Registry, logger logging.Logger) *BaseProvider {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &BaseProvider{endpoints: endpoints, signals: signals, logger: logger}
}

// Provide реализует Provider
func (p *BaseProvider) Provide(request *message.Request) (Command, error) {
	base := baseCommand{
		transactionID: request.Transaction,
		endpointID:    request.Endpoint,
		parameters:    request.Parameters,
		sdp:           request.SDP,
		endpoints:     p.endpoints,
		logger:        p.logger.WithComponent("command." + string(request.Verb)),
	}

	switch request.Verb {
	case message.VerbCreateConnection:
		return &CreateConnection{baseCommand: base}, nil
	case message.VerbModifyConnection:
		return &ModifyConnection{baseCommand: base}, nil
	case message.VerbDeleteConnection:
		return &DeleteConnection{baseCommand: base}, nil
	case message.VerbRequestNotification:
		return &RequestNotification{baseCommand: base, signals: p.signals}, nil
	case message.VerbAuditEndpoint:
		return &AuditEndpoint{baseCommand: base}, nil
	case message.VerbAuditConnection:
		return &AuditConnection{baseCommand: base}, nil
	case message.VerbNotify, message.VerbRestartInProgress:
		return nil, NewError(message.CodeUnsupportedFeature,
			fmt.Sprintf("команда %s не принимается контроллером", request.Verb))
	default:
		return nil, NewError(message.CodeProtocolError,
			fmt.Sprintf("неизвестная команда: %s", request.Verb))
	}
}
