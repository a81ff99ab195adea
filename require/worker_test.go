package require

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/chazu/rite/compiler"
	"github.com/chazu/rite/vm"
)

func TestWorkerConcurrentLoads(t *testing.T) {
	l, dir := testLoader(t)
	s, _ := openState(t, l)
	w := NewWorker(s, l)
	defer w.Stop()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := fmt.Sprintf("def m%d\n  %d\nend", i, i*i)
			ok, err := w.LoadSource(src, fmt.Sprintf("m%d.rb", i))
			if err == nil && !ok {
				err = errors.New("load reported false")
			}
			errs[i] = err
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("load %d: %v", i, err)
		}
	}

	v, err := w.Do(func(s *vm.State) (any, error) {
		return compiler.Eval(s, "m3 + m4", nil)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := v.(vm.Value); !got.IsInt() || got.Int() != 25 {
		t.Errorf("m3 + m4 = %v, want 25", got)
	}
	expectEmptyDir(t, dir)
}

func TestWorkerLoadFailure(t *testing.T) {
	l, _ := testLoader(t)
	s, _ := openState(t, l)
	w := NewWorker(s, l)
	defer w.Stop()

	ok, err := w.LoadSource("def", "bad.rb")
	if ok {
		t.Error("LoadSource reported success")
	}
	expectException(t, err, s.LoadErrorClass, "can't load file -- bad.rb")

	_, err = w.LoadFile("/nonexistent/x.mrb")
	expectException(t, err, s.LoadErrorClass, "can't open file -- /nonexistent/x.mrb")
}

func TestWorkerRecoversPanic(t *testing.T) {
	l, _ := testLoader(t)
	s, _ := openState(t, l)
	w := NewWorker(s, l)
	defer w.Stop()

	_, err := w.Do(func(*vm.State) (any, error) {
		panic("kaboom")
	})
	if err == nil || err.Error() != "panic in worker: kaboom" {
		t.Errorf("Do = %v, want recovered panic", err)
	}

	// the worker keeps serving
	if ok, err := w.LoadSource("1", ""); err != nil || !ok {
		t.Errorf("LoadSource after panic = %v, %v", ok, err)
	}
}

func TestWorkerStop(t *testing.T) {
	l, _ := testLoader(t)
	s, _ := openState(t, l)
	w := NewWorker(s, l)

	w.Stop()
	w.Stop()
	if _, err := w.Do(func(*vm.State) (any, error) { return nil, nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do after Stop = %v, want ErrWorkerStopped", err)
	}
	if _, err := w.LoadSource("1", ""); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("LoadSource after Stop = %v", err)
	}
}
