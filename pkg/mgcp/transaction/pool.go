package transaction

import "sync"

// workerPool пул горутин для исполнения команд.
// Каждая команда целиком исполняется одним воркером; порядок ответов
// одной команды тем самым сохраняется.
type workerPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 4
	}
	p := &workerPool{tasks: make(chan func(), size*4)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit ставит задачу в очередь; false если пул остановлен
func (p *workerPool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.tasks <- task
	return true
}

// Stop останавливает пул, дожидаясь текущих задач
func (p *workerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
