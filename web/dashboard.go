// ABOUTME: Read-only HTML monitor for the live reconstruction store.
// ABOUTME: Serves a task list and per-task thought detail behind a chi router.

package web

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/spyglass/trace"
)

// Dashboard serves the monitor UI over the live store.
type Dashboard struct {
	store *trace.Store
	index *template.Template
	task  *template.Template
	logf  func(format string, args ...any)
}

// taskView is the template-facing projection of one task.
type taskView struct {
	ID                string
	Description       string
	Lanes             []bool // per canonical lane: reached by any thought
	Thoughts          []thoughtView
	FirstObservedAt   time.Time
	LocallyOriginated bool
	Completed         bool
}

// thoughtView is the template-facing projection of one thought.
type thoughtView struct {
	ID           string
	Lanes        []bool
	CurrentStage string
}

// NewDashboard creates a Dashboard over the given store.
func NewDashboard(store *trace.Store, logf func(format string, args ...any)) (*Dashboard, error) {
	funcs := buildFuncMap()

	index, err := template.New("base").Funcs(funcs).Parse(baseTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}
	if _, err := index.Parse(indexTemplate); err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}

	task, err := template.New("base").Funcs(funcs).Parse(baseTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}
	if _, err := task.Parse(taskTemplate); err != nil {
		return nil, fmt.Errorf("parse task template: %w", err)
	}

	return &Dashboard{store: store, index: index, task: task, logf: logf}, nil
}

// Router builds the chi router with logging and panic recovery.
func (d *Dashboard) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", d.handleIndex)
	r.Get("/tasks/{taskID}", d.handleTask)
	return r
}

// Serve runs the dashboard HTTP server until ctx is cancelled.
func (d *Dashboard) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           d.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	if d.logf != nil {
		d.logf("[monitor] listening on %s", addr)
	}
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	views := make([]taskView, 0)
	for _, snap := range d.store.Snapshot() {
		views = append(views, toTaskView(snap))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.index.Execute(w, struct{ Tasks []taskView }{views}); err != nil && d.logf != nil {
		d.logf("[monitor] render index: %v", err)
	}
}

func (d *Dashboard) handleTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	snap, ok := d.store.Task(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.task.Execute(w, struct{ Task taskView }{toTaskView(snap)}); err != nil && d.logf != nil {
		d.logf("[monitor] render task %s: %v", id, err)
	}
}

func toTaskView(snap trace.TaskSnapshot) taskView {
	v := taskView{
		ID:                snap.ID,
		Description:       snap.Description,
		Lanes:             make([]bool, len(trace.CanonicalLanes)),
		FirstObservedAt:   snap.FirstObservedAt,
		LocallyOriginated: snap.LocallyOriginated,
		Completed:         snap.Completed,
	}
	for _, th := range snap.Thoughts {
		tv := thoughtView{
			ID:           th.ID,
			Lanes:        make([]bool, len(trace.CanonicalLanes)),
			CurrentStage: th.CurrentStage,
		}
		for _, lane := range th.LanesReached {
			if i := lane.Index(); i >= 0 {
				tv.Lanes[i] = true
				v.Lanes[i] = true
			}
		}
		v.Thoughts = append(v.Thoughts, tv)
	}
	return v
}
