package local

import (
	"context"
	"sync"
	"time"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/pkg/backend"
	"github.com/quillworks/quill/pkg/prompt"
	"github.com/quillworks/quill/pkg/stream"
	"github.com/quillworks/quill/pkg/transform"
)

// DefaultMaxQueue bounds the pending request queue. Requests beyond the
// bound fail immediately with a queue-full error rather than piling up
// behind a slow model.
const DefaultMaxQueue = 128

// Config configures an Engine.
type Config struct {
	// NewRuntime creates runtimes on demand. Required.
	NewRuntime RuntimeFactory
	// Emit receives every event the engine produces. Required.
	Emit func(transform.Event)
	// MaxQueue bounds pending requests; 0 means DefaultMaxQueue.
	MaxQueue int
	// Interval overrides the update throttle interval; 0 means the default.
	Interval time.Duration
}

// Engine holds at most one loaded local model and serializes generation
// against it. Requests are queued FIFO; a single drain goroutine works the
// queue so two generations never touch the model concurrently. A failure on
// one item never prevents later items from running.
type Engine struct {
	newRuntime RuntimeFactory
	emit       func(transform.Event)
	maxQueue   int
	interval   time.Duration

	// loadMu serializes model loads and generation against the runtime, and
	// guards the session fields below. The drain loop holds it for the full
	// duration of a model call, so a concurrent Get cannot close or reload
	// the runtime while a generation is executing on it.
	loadMu      sync.Mutex
	runtime     Runtime
	loadedModel string
	loadedKind  backend.Kind

	// qu guards the queue and the draining flag.
	qu       sync.Mutex
	queue    []Item
	draining bool
}

// NewEngine builds an engine from cfg.
func NewEngine(cfg Config) *Engine {
	maxQueue := cfg.MaxQueue
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = stream.DefaultInterval
	}
	return &Engine{
		newRuntime: cfg.NewRuntime,
		emit:       cfg.Emit,
		maxQueue:   maxQueue,
		interval:   interval,
	}
}

// Get returns a runtime with the requested model loaded, loading or
// reloading as needed. A reload happens only when the model id or the
// backend kind differs from what is currently loaded; repeated calls for the
// same pair are no-ops. On load failure the session state is cleared so the
// next call retries from scratch instead of assuming a half-loaded model.
// Get blocks while a generation is in flight; the runtime is never swapped
// out from under an executing model call.
func (e *Engine) Get(ctx context.Context, settings transform.Settings, kind backend.Kind, progress ProgressFunc) (Runtime, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	return e.get(ctx, settings, kind, progress)
}

// get does the load work. Callers must hold loadMu.
func (e *Engine) get(ctx context.Context, settings transform.Settings, kind backend.Kind, progress ProgressFunc) (Runtime, error) {
	modelID := settings.LocalModelOrDefault()

	if e.runtime != nil && e.loadedModel == modelID && e.loadedKind == kind {
		return e.runtime, nil
	}

	// A kind switch needs a different runtime; a model switch reuses it.
	rt := e.runtime
	if rt == nil || e.loadedKind != kind {
		if rt != nil {
			if err := rt.Close(); err != nil {
				logger.Warn("closing previous runtime failed", "error", err)
			}
		}
		e.runtime = nil
		e.loadedModel = ""
		e.loadedKind = ""

		var err error
		rt, err = e.newRuntime(kind)
		if err != nil {
			return nil, transform.WrapErr(transform.CodeLoadFailed, "create runtime", err)
		}
	}

	logger.Info("loading local model", "model", modelID, "kind", string(kind))
	if err := rt.Load(ctx, modelID, progress); err != nil {
		_ = rt.Close()
		e.runtime = nil
		e.loadedModel = ""
		e.loadedKind = ""
		return nil, transform.WrapErr(transform.CodeLoadFailed, "load model "+modelID, err)
	}

	e.runtime = rt
	e.loadedModel = modelID
	e.loadedKind = kind
	return rt, nil
}

// Loaded reports the currently loaded model id and kind, empty when nothing
// is loaded.
func (e *Engine) Loaded() (string, backend.Kind) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	return e.loadedModel, e.loadedKind
}

// Enqueue appends a request to the FIFO queue and starts the drain goroutine
// if none is running. When the queue is full the request fails immediately
// with a terminal error event; nothing is dropped silently.
func (e *Engine) Enqueue(item Item) {
	e.qu.Lock()
	if len(e.queue) >= e.maxQueue {
		e.qu.Unlock()
		e.emit(transform.ErrorEvent{
			Err:       "local queue is full, try again later",
			Code:      transform.CodeQueueFull,
			Mode:      item.Mode,
			RequestID: item.RequestID,
		})
		return
	}
	e.queue = append(e.queue, item)
	start := !e.draining
	if start {
		e.draining = true
	}
	e.qu.Unlock()

	if start {
		go e.drain()
	}
}

// Pending reports how many requests are waiting, not counting the one being
// processed.
func (e *Engine) Pending() int {
	e.qu.Lock()
	defer e.qu.Unlock()
	return len(e.queue)
}

// drain works the queue until empty, one item at a time, then exits. The
// draining flag is cleared under the queue lock so an Enqueue racing with
// the final check starts a fresh drain rather than stranding its item.
func (e *Engine) drain() {
	for {
		e.qu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.qu.Unlock()
			return
		}
		item := e.queue[0]
		e.queue = e.queue[1:]
		e.qu.Unlock()

		e.process(item)
	}
}

// process runs one queued item to a terminal event. Errors are converted to
// an error event for this item's request id; they never propagate to the
// drain loop. loadMu is held across the model call: the runtime and session
// fields stay fixed from load through completion.
func (e *Engine) process(item Item) {
	ctx := context.Background()

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	rt, err := e.get(ctx, item.Settings, item.Kind, nil)
	if err != nil {
		e.fail(item, err)
		return
	}

	system := prompt.BuildSystemPrompt(item.Mode, item.Settings)
	user := prompt.WrapUserContent(item.Text)

	sess := stream.New(func(text string) {
		e.emit(transform.UpdateEvent{
			Text:      text,
			Mode:      item.Mode,
			Backend:   string(item.Kind),
			RequestID: item.RequestID,
		})
	}, stream.WithInterval(e.interval))

	if _, err := rt.Complete(ctx, system, user, sess.Append); err != nil {
		e.fail(item, err)
		return
	}

	e.emit(transform.CompleteEvent{
		Text:      sess.Text(),
		Mode:      item.Mode,
		Backend:   string(item.Kind),
		RequestID: item.RequestID,
	})
}

func (e *Engine) fail(item Item, err error) {
	logger.Error("local generation failed", "mode", string(item.Mode), "request_id", item.RequestID, "error", err)
	e.emit(transform.ErrorEvent{
		Err:       err.Error(),
		Code:      transform.CodeOf(err),
		Mode:      item.Mode,
		RequestID: item.RequestID,
	})
}

// Close releases the loaded runtime, if any.
func (e *Engine) Close() error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if e.runtime == nil {
		return nil
	}
	err := e.runtime.Close()
	e.runtime = nil
	e.loadedModel = ""
	e.loadedKind = ""
	return err
}
