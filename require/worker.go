package require

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/rite/vm"
)

// ErrWorkerStopped is returned by Do once the worker has been stopped.
var ErrWorkerStopped = errors.New("require: worker stopped")

// workRequest is a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func(*vm.State) (any, error)
	done chan workResult
}

type workResult struct {
	value any
	err   error
}

// Worker serializes all access to one interpreter through a single
// goroutine. Interpreters are single-threaded; concurrent callers that
// share one must go through a Worker.
type Worker struct {
	state    *vm.State
	loader   *Loader
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker for s and starts the processing goroutine.
func NewWorker(s *vm.State, l *Loader) *Worker {
	w := &Worker{
		state:    s,
		loader:   l,
		requests: make(chan workRequest),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the interpreter, recovering from panics.
func (w *Worker) execute(fn func(*vm.State) (any, error)) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			result = workResult{err: fmt.Errorf("panic in worker: %v", r)}
		}
	}()
	v, err := fn(w.state)
	return workResult{value: v, err: err}
}

// Do runs fn on the worker goroutine and blocks until it completes.
func (w *Worker) Do(fn func(*vm.State) (any, error)) (any, error) {
	req := workRequest{fn: fn, done: make(chan workResult, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	res := <-req.done
	return res.value, res.err
}

// LoadSource runs Loader.LoadSource on the worker's interpreter.
func (w *Worker) LoadSource(source, path string) (bool, error) {
	v, err := w.Do(func(s *vm.State) (any, error) {
		return w.loader.LoadSource(s, source, path)
	})
	ok, _ := v.(bool)
	return ok, err
}

// LoadFile runs Loader.LoadFile on the worker's interpreter.
func (w *Worker) LoadFile(path string) (bool, error) {
	v, err := w.Do(func(s *vm.State) (any, error) {
		return w.loader.LoadFile(s, path)
	})
	ok, _ := v.(bool)
	return ok, err
}

// Stop shuts down the worker goroutine. Requests already running finish;
// later calls to Do fail with ErrWorkerStopped.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
