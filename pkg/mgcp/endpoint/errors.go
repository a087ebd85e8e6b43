package endpoint

import "errors"

var (
	// ErrEndpointUnknown идентификатор не разрешается в endpoint (500)
	ErrEndpointUnknown = errors.New("endpoint не найден")
	// ErrEndpointNotReady endpoint найден, но не активируем (501)
	ErrEndpointNotReady = errors.New("endpoint не готов")
	// ErrNoEndpointAvailable нет свободного endpoint'а для wildcard $ (403)
	ErrNoEndpointAvailable = errors.New("нет свободных endpoint'ов")
	// ErrConnectionNotFound соединение не зарегистрировано на endpoint'е
	ErrConnectionNotFound = errors.New("соединение не найдено")
	// ErrConnectionExists соединение с таким id уже существует
	ErrConnectionExists = errors.New("соединение уже существует")
	// ErrSignalBusy второй TIME_OUT сигнал при исполняющемся первом (528)
	ErrSignalBusy = errors.New("TIME_OUT сигнал уже исполняется")
)
