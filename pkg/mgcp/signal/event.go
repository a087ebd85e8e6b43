package signal

import (
	"sort"
	"strconv"
	"strings"
)

// Event событие, порожденное сигналом (завершение или отказ).
// Сериализуется в параметр ObservedEvents как package/symbol(k=v ...).
type Event interface {
	Package() string
	Symbol() string
	Code() int
	// Parameter возвращает возвращаемый параметр события ("" если нет)
	Parameter(key string) string
	String() string
}

// EventObserver получает события сигналов
type EventObserver interface {
	OnSignalEvent(s Signal, event Event)
}

// baseEvent общая часть OperationComplete / OperationFailed
type baseEvent struct {
	pkg        string
	symbol     string
	code       int
	parameters map[string]string
}

func (e *baseEvent) Package() string { return e.pkg }
func (e *baseEvent) Symbol() string  { return e.symbol }
func (e *baseEvent) Code() int       { return e.code }

func (e *baseEvent) Parameter(key string) string {
	return e.parameters[key]
}

func (e *baseEvent) String() string {
	var sb strings.Builder
	sb.WriteString(e.pkg)
	sb.WriteByte('/')
	sb.WriteString(e.symbol)
	sb.WriteByte('(')
	sb.WriteString("rc=")
	sb.WriteString(strconv.Itoa(e.code))
	keys := make([]string, 0, len(e.parameters))
	for k := range e.parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(e.parameters[k])
	}
	sb.WriteByte(')')
	return sb.String()
}

// OperationComplete успешное завершение сигнала (oc)
type OperationComplete struct {
	baseEvent
}

// NewOperationComplete создает событие успешного завершения
func NewOperationComplete(pkg, symbol string, code int, parameters map[string]string) *OperationComplete {
	return &OperationComplete{baseEvent{pkg: pkg, symbol: symbol, code: code, parameters: parameters}}
}

// OperationFailed неуспешное завершение сигнала (of)
type OperationFailed struct {
	baseEvent
}

// NewOperationFailed создает событие отказа
func NewOperationFailed(pkg, symbol string, code int, parameters map[string]string) *OperationFailed {
	return &OperationFailed{baseEvent{pkg: pkg, symbol: symbol, code: code, parameters: parameters}}
}
