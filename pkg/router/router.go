// Package router orchestrates transformation requests: it resolves which
// backend serves each request, drives the chosen backend, and multiplexes
// every backend's events onto one outbound channel tagged with request ids.
package router

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/pkg/backend"
	"github.com/quillworks/quill/pkg/backend/local"
	"github.com/quillworks/quill/pkg/backend/native"
	"github.com/quillworks/quill/pkg/backend/remote"
	"github.com/quillworks/quill/pkg/prompt"
	"github.com/quillworks/quill/pkg/stream"
	"github.com/quillworks/quill/pkg/transform"
)

// DefaultEventBuffer sizes the outbound event channel.
const DefaultEventBuffer = 64

// Request is one transformation request. An empty RequestID gets a fresh id
// minted; the id rides on every event the request produces.
type Request struct {
	Text      string
	Mode      transform.Mode
	Settings  transform.Settings
	RequestID string
}

// Config configures a Router.
type Config struct {
	// Detector probes backend availability. Required.
	Detector *backend.Detector
	// Native drives the host's built-in capabilities; nil when absent.
	Native *native.Engine
	// LocalFactory creates local runtimes; nil disables the local backends.
	LocalFactory local.RuntimeFactory
	// EventBuffer sizes the event channel; 0 means DefaultEventBuffer.
	EventBuffer int
	// Interval overrides the update throttle interval; 0 means the default.
	Interval time.Duration
	// RemoteTimeout bounds remote requests; 0 means the client default.
	RemoteTimeout time.Duration
}

// Router is the engine facade. Events from every backend come out of one
// channel; callers correlate responses to requests by id.
type Router struct {
	detector *backend.Detector
	native   *native.Engine
	local    *local.Engine
	events   chan transform.Event
	interval time.Duration
	timeout  time.Duration
}

// New builds a router from cfg.
func New(cfg Config) *Router {
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = stream.DefaultInterval
	}

	r := &Router{
		detector: cfg.Detector,
		native:   cfg.Native,
		events:   make(chan transform.Event, buffer),
		interval: interval,
		timeout:  cfg.RemoteTimeout,
	}
	if cfg.LocalFactory != nil {
		r.local = local.NewEngine(local.Config{
			NewRuntime: cfg.LocalFactory,
			Emit:       r.emit,
			Interval:   interval,
		})
	}
	return r
}

// Events returns the outbound event channel. It is never closed while the
// router is in use; callers stop reading when done.
func (r *Router) Events() <-chan transform.Event {
	return r.events
}

// emit delivers an event without ever blocking a backend. When the caller
// stops draining the channel, events are dropped and logged rather than
// wedging the generation path.
func (r *Router) emit(ev transform.Event) {
	select {
	case r.events <- ev:
	default:
		logger.Warn("event channel full, dropping event")
	}
}

// Resolutions reports which backend would serve each mode under the given
// settings, without running anything.
func (r *Router) Resolutions(ctx context.Context, settings transform.Settings) []backend.Resolution {
	snap := r.detector.Snapshot(ctx)
	return backend.Resolve(snap, pref(settings))
}

// Load prepares the backend that would serve the default mode. The native
// and remote backends need no preparation and report ready immediately; a
// local backend loads its model, relaying progress, before reporting ready.
// Load failures produce an error event without a request id and are also
// returned.
func (r *Router) Load(ctx context.Context, settings transform.Settings) error {
	snap := r.detector.Snapshot(ctx)
	defaultMode, _ := transform.ParseMode("")
	kind := backend.ResolveMode(snap, pref(settings), defaultMode)

	switch kind {
	case backend.KindLocalGPU, backend.KindLocalWASM:
		if r.local == nil {
			err := transform.E(transform.CodeEngineNotReady, "local backends are disabled")
			r.emit(transform.ErrorEvent{Err: err.Error(), Code: err.Code})
			return err
		}
		_, err := r.local.Get(ctx, settings, kind, func(pct float64, status string) {
			r.emit(transform.ProgressEvent{Progress: transform.Progress{Progress: pct, Text: status}})
		})
		if err != nil {
			r.emit(transform.ErrorEvent{Err: err.Error(), Code: transform.CodeOf(err)})
			return err
		}
	}

	r.emit(transform.ReadyEvent{})
	return nil
}

// Generate routes one request to its resolved backend. Local requests are
// queued and return immediately; native and remote requests run to their
// terminal event before returning. Every outcome, success or failure, is
// reported as events carrying the request id.
func (r *Router) Generate(ctx context.Context, req Request) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if !req.Mode.Valid() {
		r.fail(req, transform.Ef(transform.CodeModeUnsupported, "unknown mode %q", req.Mode))
		return
	}

	snap := r.detector.Snapshot(ctx)
	kind := backend.ResolveMode(snap, pref(req.Settings), req.Mode)
	logger.Debug("routing request", "request_id", req.RequestID, "mode", string(req.Mode), "backend", string(kind))

	switch kind {
	case backend.KindNative:
		r.generateNative(ctx, req)
	case backend.KindLocalGPU, backend.KindLocalWASM:
		r.generateLocal(req, kind)
	default:
		r.generateRemote(ctx, req)
	}
}

// generateNative runs the request on the host runtime. When the native path
// fails and a remote API key is configured, the request falls through to the
// remote backend instead of surfacing the native error.
func (r *Router) generateNative(ctx context.Context, req Request) {
	if r.native == nil {
		r.nativeFallback(ctx, req, transform.E(transform.CodeModeUnsupported, "native runtime not present"))
		return
	}

	sess := r.newSession(req, backend.KindNative)
	result, err := r.native.Process(ctx, req.Text, req.Mode, req.Settings, sess)
	if err != nil {
		r.nativeFallback(ctx, req, err)
		return
	}
	r.complete(req, backend.KindNative, result)
}

func (r *Router) nativeFallback(ctx context.Context, req Request, cause error) {
	if req.Settings.RemoteAPIKey == "" {
		logger.Debug("native path failed and no remote key configured", "request_id", req.RequestID, "error", cause)
		r.fail(req, cause)
		return
	}
	logger.Info("native path failed, falling back to remote", "request_id", req.RequestID, "error", cause)
	r.generateRemote(ctx, req)
}

func (r *Router) generateLocal(req Request, kind backend.Kind) {
	if r.local == nil {
		r.fail(req, transform.E(transform.CodeEngineNotReady, "local backends are disabled"))
		return
	}
	r.local.Enqueue(local.Item{
		Text:      req.Text,
		Mode:      req.Mode,
		Settings:  req.Settings,
		Kind:      kind,
		RequestID: req.RequestID,
	})
}

func (r *Router) generateRemote(ctx context.Context, req Request) {
	s := req.Settings
	if s.RemoteAPIKey == "" {
		r.fail(req, transform.E(transform.CodeNoAPIKey, "remote API key is not configured"))
		return
	}
	if s.RemoteAPIModel == "" {
		r.fail(req, transform.E(transform.CodeNoModel, "remote API model is not configured"))
		return
	}

	client, err := remote.NewClient(remote.Config{
		BaseURL: s.RemoteAPIBaseURL,
		APIKey:  s.RemoteAPIKey,
		Model:   s.RemoteAPIModel,
		Timeout: r.timeout,
	})
	if err != nil {
		r.fail(req, err)
		return
	}

	system := prompt.BuildSystemPrompt(req.Mode, s)
	user := prompt.WrapUserContent(req.Text)

	sess := r.newSession(req, backend.KindRemote)
	if _, err := client.Stream(ctx, system, user, sess.Append); err != nil {
		if ctx.Err() != nil {
			err = transform.WrapErr(transform.CodeTimeout, "request timed out", err)
		}
		r.fail(req, err)
		return
	}
	r.complete(req, backend.KindRemote, sess.Text())
}

func (r *Router) newSession(req Request, kind backend.Kind) *stream.Session {
	return stream.New(func(text string) {
		r.emit(transform.UpdateEvent{
			Text:      text,
			Mode:      req.Mode,
			Backend:   string(kind),
			RequestID: req.RequestID,
		})
	}, stream.WithInterval(r.interval))
}

func (r *Router) complete(req Request, kind backend.Kind, text string) {
	r.emit(transform.CompleteEvent{
		Text:      text,
		Mode:      req.Mode,
		Backend:   string(kind),
		RequestID: req.RequestID,
	})
}

func (r *Router) fail(req Request, err error) {
	r.emit(transform.ErrorEvent{
		Err:       err.Error(),
		Code:      transform.CodeOf(err),
		Mode:      req.Mode,
		RequestID: req.RequestID,
	})
}

// Close releases the local engine, if any.
func (r *Router) Close() error {
	if r.local == nil {
		return nil
	}
	return r.local.Close()
}

func pref(s transform.Settings) backend.Kind {
	if s.Engine == "" {
		return backend.PrefAuto
	}
	return backend.Kind(s.Engine)
}
