package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (r *recorder) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recorder) Recover()            {}
func (r *recorder) Flush(time.Duration) {}

func TestInitRestore(t *testing.T) {
	rec := &recorder{}
	restore := Init(rec)
	CaptureException(errors.New("ledger down"), map[string]string{"module": "dispatcher"})
	CaptureException(nil, nil)
	restore()
	CaptureException(errors.New("after restore"), nil)

	if len(rec.errs) != 1 {
		t.Fatalf("expected one captured error, got %d", len(rec.errs))
	}
	if rec.tags[0]["module"] != "dispatcher" {
		t.Fatalf("unexpected tags %v", rec.tags[0])
	}
	if _, ok := get().(NopMonitor); !ok {
		t.Fatalf("expected NopMonitor after restore, got %T", get())
	}
}

func TestInitNilKeepsCurrent(t *testing.T) {
	rec := &recorder{}
	defer Init(rec)()
	Init(nil)
	if get() != Monitor(rec) {
		t.Fatal("nil monitor replaced the current one")
	}
}

func TestGo(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}
