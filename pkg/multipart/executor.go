package multipart

import "sync"

// executor runs tasks in submission order on at most limit goroutines.
// Workers are started on demand and exit when the queue is empty.
type executor struct {
	mu     sync.Mutex
	queue  []func()
	active int
	limit  int
}

func newExecutor(limit int) *executor {
	if limit < 1 {
		limit = 1
	}
	return &executor{limit: limit}
}

func (e *executor) submit(task func()) {
	e.mu.Lock()
	e.queue = append(e.queue, task)
	spawn := e.active < e.limit
	if spawn {
		e.active++
	}
	e.mu.Unlock()

	if spawn {
		go e.work()
	}
}

func (e *executor) work() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.active--
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		task()
	}
}
