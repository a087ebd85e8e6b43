package transaction

import (
	"container/list"
	"sync"

	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
)

// completedBufferSize размер буфера недавно завершенных транзакций
const completedBufferSize = 256

// completedBuffer ограниченный LRU буфер недавно завершенных транзакций.
// Хранит последний ответ по id транзакции для подавления дубликатов
// запросов, пришедших после завершения.
type completedBuffer struct {
	mu      sync.Mutex
	limit   int
	order   *list.List // элементы: int (id), свежие в начале
	entries map[int]*completedEntry
}

type completedEntry struct {
	response *message.Response
	element  *list.Element
}

func newCompletedBuffer(limit int) *completedBuffer {
	if limit <= 0 {
		limit = completedBufferSize
	}
	return &completedBuffer{
		limit:   limit,
		order:   list.New(),
		entries: make(map[int]*completedEntry),
	}
}

// put запоминает ответ завершенной транзакции, вытесняя старейшую запись
func (b *completedBuffer) put(id int, response *message.Response) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.entries[id]; ok {
		entry.response = response
		b.order.MoveToFront(entry.element)
		return
	}

	element := b.order.PushFront(id)
	b.entries[id] = &completedEntry{response: response, element: element}

	for b.order.Len() > b.limit {
		oldest := b.order.Back()
		b.order.Remove(oldest)
		delete(b.entries, oldest.Value.(int))
	}
}

// get возвращает ответ завершенной транзакции и освежает запись
func (b *completedBuffer) get(id int) (*message.Response, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[id]
	if !ok {
		return nil, false
	}
	b.order.MoveToFront(entry.element)
	return entry.response, true
}

// len текущее число записей
func (b *completedBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}
