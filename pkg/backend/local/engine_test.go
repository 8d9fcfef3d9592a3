package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quillworks/quill/pkg/backend"
	"github.com/quillworks/quill/pkg/transform"
)

// scriptedRuntime records load and completion calls and can be told to fail
// or block.
type scriptedRuntime struct {
	mu          sync.Mutex
	loads       []string
	completions []string
	loadErr     error
	failInputs  map[string]error
	gate        chan struct{} // when set, Complete blocks until closed

	inFlight    int
	maxInFlight int
	closed      bool
}

func (r *scriptedRuntime) Load(ctx context.Context, modelID string, progress ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return r.loadErr
	}
	r.loads = append(r.loads, modelID)
	if progress != nil {
		progress(100, "loaded")
	}
	return nil
}

func (r *scriptedRuntime) Complete(ctx context.Context, system, user string, onDelta func(string)) (string, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	// Leave the overlap window open long enough for a concurrent call to
	// be observed if one ever happens.
	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	if err, ok := r.failInputs[user]; ok {
		r.mu.Unlock()
		return "", err
	}
	r.completions = append(r.completions, user)
	r.mu.Unlock()

	reply := "done:" + user
	if onDelta != nil {
		onDelta(reply)
	}
	return reply, nil
}

func (r *scriptedRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// eventSink collects events and signals terminal ones.
type eventSink struct {
	mu       sync.Mutex
	events   []transform.Event
	terminal chan transform.Event
}

func newEventSink() *eventSink {
	return &eventSink{terminal: make(chan transform.Event, 64)}
}

func (s *eventSink) emit(ev transform.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	switch ev.(type) {
	case transform.CompleteEvent, transform.ErrorEvent:
		s.terminal <- ev
	}
}

func (s *eventSink) waitTerminal(t *testing.T, n int) []transform.Event {
	t.Helper()
	out := make([]transform.Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-s.terminal:
			out = append(out, ev)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for terminal event %d of %d", i+1, n)
		}
	}
	return out
}

func newTestEngine(rt *scriptedRuntime, sink *eventSink, maxQueue int) (*Engine, *int) {
	created := 0
	e := NewEngine(Config{
		NewRuntime: func(kind backend.Kind) (Runtime, error) {
			created++
			return rt, nil
		},
		Emit:     sink.emit,
		MaxQueue: maxQueue,
		Interval: time.Millisecond,
	})
	return e, &created
}

func item(text string, kind backend.Kind) Item {
	return Item{
		Text:      text,
		Mode:      transform.ModeProofread,
		Settings:  transform.Settings{},
		Kind:      kind,
		RequestID: "req-" + text,
	}
}

func TestEngine_FIFOOrderAndSingleFlight(t *testing.T) {
	rt := &scriptedRuntime{}
	sink := newEventSink()
	e, _ := newTestEngine(rt, sink, 0)
	defer func() { _ = e.Close() }()

	const n = 8
	for i := 0; i < n; i++ {
		e.Enqueue(item(fmt.Sprintf("t%02d", i), backend.KindLocalWASM))
	}
	sink.waitTerminal(t, n)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.completions) != n {
		t.Fatalf("expected %d completions, got %d", n, len(rt.completions))
	}
	for i, user := range rt.completions {
		want := fmt.Sprintf("t%02d", i)
		if !strings.Contains(user, want) {
			t.Errorf("position %d: expected input %q in prompt, got %q", i, want, user)
		}
	}
	if rt.maxInFlight != 1 {
		t.Errorf("generation must be single-flight, saw %d concurrent", rt.maxInFlight)
	}
}

func TestEngine_ErrorIsolation(t *testing.T) {
	rt := &scriptedRuntime{failInputs: map[string]error{}}
	sink := newEventSink()
	e, _ := newTestEngine(rt, sink, 0)
	defer func() { _ = e.Close() }()

	// The middle item fails; its neighbors must still complete. Failures
	// are keyed by the wrapped prompt containing the text.
	rt.mu.Lock()
	rt.failInputs["<user_input>\nbad\n</user_input>"] = errors.New("generation exploded")
	rt.mu.Unlock()

	e.Enqueue(item("first", backend.KindLocalWASM))
	e.Enqueue(item("bad", backend.KindLocalWASM))
	e.Enqueue(item("last", backend.KindLocalWASM))

	events := sink.waitTerminal(t, 3)

	completes, failures := 0, 0
	for _, ev := range events {
		switch e := ev.(type) {
		case transform.CompleteEvent:
			completes++
		case transform.ErrorEvent:
			failures++
			if e.RequestID != "req-bad" {
				t.Errorf("error event carries wrong request id: %q", e.RequestID)
			}
		}
	}
	if completes != 2 || failures != 1 {
		t.Errorf("expected 2 completions and 1 failure, got %d/%d", completes, failures)
	}
}

func TestEngine_ReloadOnlyOnChange(t *testing.T) {
	rt := &scriptedRuntime{}
	sink := newEventSink()
	e, created := newTestEngine(rt, sink, 0)
	defer func() { _ = e.Close() }()

	ctx := context.Background()
	settings := transform.Settings{LocalModelID: "model-a"}

	if _, err := e.Get(ctx, settings, backend.KindLocalWASM, nil); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := e.Get(ctx, settings, backend.KindLocalWASM, nil); err != nil {
		t.Fatalf("repeat load: %v", err)
	}
	if len(rt.loads) != 1 {
		t.Fatalf("same model and kind must not reload, got %d loads", len(rt.loads))
	}

	// Model change: same runtime, new load.
	settings.LocalModelID = "model-b"
	if _, err := e.Get(ctx, settings, backend.KindLocalWASM, nil); err != nil {
		t.Fatalf("model switch: %v", err)
	}
	if len(rt.loads) != 2 {
		t.Errorf("model switch must reload, got %d loads", len(rt.loads))
	}
	if *created != 1 {
		t.Errorf("model switch must reuse the runtime, created %d", *created)
	}

	// Kind change: new runtime instance.
	if _, err := e.Get(ctx, settings, backend.KindLocalGPU, nil); err != nil {
		t.Fatalf("kind switch: %v", err)
	}
	if *created != 2 {
		t.Errorf("kind switch must create a fresh runtime, created %d", *created)
	}

	model, kind := e.Loaded()
	if model != "model-b" || kind != backend.KindLocalGPU {
		t.Errorf("unexpected session state: %q/%q", model, kind)
	}
}

func TestEngine_LoadFailureClearsState(t *testing.T) {
	rt := &scriptedRuntime{loadErr: errors.New("weights corrupt")}
	sink := newEventSink()
	e, _ := newTestEngine(rt, sink, 0)

	ctx := context.Background()
	_, err := e.Get(ctx, transform.Settings{}, backend.KindLocalWASM, nil)
	if err == nil {
		t.Fatal("expected load failure")
	}
	if transform.CodeOf(err) != transform.CodeLoadFailed {
		t.Errorf("expected LOAD_FAILED, got %q", transform.CodeOf(err))
	}
	if model, kind := e.Loaded(); model != "" || kind != "" {
		t.Errorf("failed load must clear session state, got %q/%q", model, kind)
	}

	// The next call retries from scratch and succeeds.
	rt.mu.Lock()
	rt.loadErr = nil
	rt.mu.Unlock()
	if _, err := e.Get(ctx, transform.Settings{}, backend.KindLocalWASM, nil); err != nil {
		t.Fatalf("retry after cleared failure: %v", err)
	}
	if model, _ := e.Loaded(); model != transform.DefaultLocalModelID {
		t.Errorf("retry should load the default model, got %q", model)
	}
}

func TestEngine_GetWaitsForInFlightGeneration(t *testing.T) {
	gate := make(chan struct{})
	rt := &scriptedRuntime{gate: gate}
	sink := newEventSink()
	e, _ := newTestEngine(rt, sink, 0)
	defer func() { _ = e.Close() }()

	e.Enqueue(item("running", backend.KindLocalWASM))
	waitInFlight(t, rt, 1)

	// A kind switch would close the runtime; it must block until the model
	// call in flight has finished.
	got := make(chan error, 1)
	go func() {
		_, err := e.Get(context.Background(), transform.Settings{}, backend.KindLocalGPU, nil)
		got <- err
	}()

	select {
	case <-got:
		t.Fatal("Get returned while a generation was executing")
	case <-time.After(50 * time.Millisecond):
	}
	rt.mu.Lock()
	closed := rt.closed
	rt.mu.Unlock()
	if closed {
		t.Fatal("runtime was closed while a generation was executing on it")
	}

	close(gate)
	if err := <-got; err != nil {
		t.Fatalf("Get after generation finished: %v", err)
	}
	sink.waitTerminal(t, 1)
}

func TestEngine_QueueFull(t *testing.T) {
	gate := make(chan struct{})
	rt := &scriptedRuntime{gate: gate}
	sink := newEventSink()
	e, _ := newTestEngine(rt, sink, 1)
	defer func() { _ = e.Close() }()

	// First item is dequeued and blocks inside Complete; the second fills
	// the queue; the third must be rejected immediately.
	e.Enqueue(item("running", backend.KindLocalWASM))
	waitPending(t, e, 0) // drained into processing
	e.Enqueue(item("queued", backend.KindLocalWASM))
	e.Enqueue(item("rejected", backend.KindLocalWASM))

	ev := sink.waitTerminal(t, 1)[0]
	errEv, ok := ev.(transform.ErrorEvent)
	if !ok {
		t.Fatalf("expected error event, got %T", ev)
	}
	if errEv.Code != transform.CodeQueueFull {
		t.Errorf("expected QUEUE_FULL, got %q", errEv.Code)
	}
	if errEv.RequestID != "req-rejected" {
		t.Errorf("rejection must carry the rejected request's id, got %q", errEv.RequestID)
	}

	close(gate)
	sink.waitTerminal(t, 2)
}

// waitInFlight polls until the runtime reports want concurrent completions.
func waitInFlight(t *testing.T, rt *scriptedRuntime, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rt.mu.Lock()
		n := rt.inFlight
		rt.mu.Unlock()
		if n == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("runtime never reached %d in-flight completions", want)
}

// waitPending polls until the queue length drops to want.
func waitPending(t *testing.T, e *Engine, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.Pending() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue never reached %d pending (at %d)", want, e.Pending())
}
