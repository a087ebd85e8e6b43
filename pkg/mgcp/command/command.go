// Package command реализует жизненный цикл MGCP команд: контракт
// execute → rollback → reset и конкретные команды контроллера.
package command

import (
	"errors"
	"fmt"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/media"
	"github.com/arzzra/mgcp_control/pkg/mgcp/endpoint"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/signal"
)

// Error ошибка исполнения команды с кодом MGCP ответа
type Error struct {
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mgcp %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError создает ошибку команды
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// WrapError сопоставляет ошибку нижнего уровня коду MGCP ответа
func WrapError(err error) *Error {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	code := message.CodeEndpointUnknown
	switch {
	case errors.Is(err, endpoint.ErrEndpointUnknown):
		code = message.CodeEndpointUnknown
	case errors.Is(err, endpoint.ErrEndpointNotReady):
		code = message.CodeEndpointNotReady
	case errors.Is(err, endpoint.ErrNoEndpointAvailable), errors.Is(err, media.ErrNoResources):
		code = message.CodeNoResourcesAvailable
	case errors.Is(err, endpoint.ErrSignalBusy):
		code = message.CodeSignalBusy
	case errors.Is(err, signal.ErrUnknownPackage):
		code = message.CodeUnknownExtension
	case errors.Is(err, signal.ErrUnknownSignal):
		code = message.CodeNoSuchEventSignal
	case errors.Is(err, signal.ErrUnknownParameter):
		code = message.CodeUnknownParameter
	case errors.Is(err, signal.ErrBadParameter), errors.Is(err, endpoint.ErrConnectionNotFound):
		code = message.CodeProtocolError
	}
	return &Error{Code: code, Message: err.Error(), Cause: err}
}

// Result результат исполнения команды
type Result struct {
	TransactionID int
	Code          int
	Message       string
	Parameters    message.Parameters
	SDP           string
}

// Response преобразует результат в MGCP ответ
func (r *Result) Response() *message.Response {
	comment := r.Message
	if comment == "" {
		comment = message.CodeComment(r.Code)
	}
	return &message.Response{
		Transaction: r.TransactionID,
		Code:        r.Code,
		Comment:     comment,
		Parameters:  r.Parameters,
		SDP:         r.SDP,
	}
}

// Command контракт конкретной команды: три чистые операции,
// протокол вызова обеспечивает Call.
type Command interface {
	// Execute исполняет команду; ошибка типа *Error инициирует rollback
	Execute() (*Result, error)
	// Rollback откатывает частично примененные эффекты; не может отказать
	Rollback(transactionID, code int, msg string) *Result
	// Reset очищает временное состояние; вызывается на каждом пути выхода
	Reset()
	// TransactionID транзакция команды
	TransactionID() int
}

// Call исполняет команду по протоколу контракта:
//
//  1. Execute; ошибка (или паника) приводит к Rollback с кодом ошибки,
//     не-Error ошибки переводятся в код через WrapError (известные
//     sentinel-ошибки получают свой код, прочие и паники — 500);
//  2. отказ самого Rollback подменяется синтезированным результатом 500;
//  3. Reset выполняется ровно один раз на любом пути выхода.
//
// Возвращаемый результат никогда не nil.
func Call(cmd Command, logger logging.Logger) (result *Result) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	defer cmd.Reset()

	var execErr *Error
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("паника в execute", logging.Any("panic", r),
					logging.Int("transaction", cmd.TransactionID()))
				execErr = NewError(message.CodeEndpointUnknown, fmt.Sprintf("внутренняя ошибка: %v", r))
			}
		}()
		var err error
		result, err = cmd.Execute()
		if err != nil {
			execErr = WrapError(err)
		}
	}()

	if execErr == nil && result != nil {
		return result
	}
	if execErr == nil {
		// Execute вернул nil без ошибки: дефект команды
		execErr = NewError(message.CodeEndpointUnknown, "команда не вернула результат")
	}

	result = rollback(cmd, execErr, logger)
	return result
}

// rollback выполняет откат с изоляцией паники
func rollback(cmd Command, execErr *Error, logger logging.Logger) *Result {
	var result *Result
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("паника в rollback", logging.Any("panic", r),
					logging.Int("transaction", cmd.TransactionID()))
				result = nil
			}
		}()
		result = cmd.Rollback(cmd.TransactionID(), execErr.Code, execErr.Message)
	}()

	if result == nil {
		// Rollback обязан не отказывать; подменяем синтезированным 500
		return &Result{
			TransactionID: cmd.TransactionID(),
			Code:          message.CodeEndpointUnknown,
			Message:       execErr.Message,
		}
	}
	return result
}
