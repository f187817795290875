package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ThaSiouL/bc-symbols-mcp/internal/resource"
	"github.com/ThaSiouL/bc-symbols-mcp/symbol"
)

const (
	defaultBatchSize   = 50
	defaultParallelism = 4
)

// Phase labels which descriptor group a progress event belongs to.
type Phase string

const (
	// PhasePriority covers batches drawn from the requested priority kinds.
	PhasePriority Phase = "priority"
	// PhaseRemainder covers batches of everything else.
	PhaseRemainder Phase = "remainder"
)

// Progress is emitted after every completed batch.
type Progress struct {
	TaskID     uuid.UUID
	Phase      Phase
	Percentage float64
	Loaded     int
	Failed     int
	Total      int
	ETAMillis  int64
}

// Report summarizes one finished load task.
type Report struct {
	TaskID   uuid.UUID
	Loaded   int
	Failed   int
	Total    int
	Duration time.Duration
	Canceled bool
}

// Request names the container to load, the kinds to load first, and an
// optional progress observer. The observer is called synchronously
// between batches and must not block.
type Request struct {
	Locator    string
	Hash       string
	Priority   []symbol.Kind
	OnProgress func(Progress)
}

// Materializer is the store the loader drives. Zero-valued kind, id
// and name act as wildcards in Descriptors.
type Materializer interface {
	Descriptors(locator, hash string, kind symbol.Kind, id uint64, name string) ([]symbol.Descriptor, error)
	Materialize(ctx context.Context, locator, hash string, kind symbol.Kind, id uint64, name string) (symbol.Object, error)
}

// Config configures a Loader.
type Config struct {
	// Source is the store children are materialized from. Required.
	Source Materializer

	// BatchSize is the number of children per batch. Defaults to 50.
	BatchSize int

	// Parallelism bounds concurrent materializations within one
	// batch. Defaults to 4.
	Parallelism int

	// Pause, when positive, is slept between batches to yield.
	Pause time.Duration

	// Resources gates background tasks by load slot and paces batch
	// scheduling. Optional.
	Resources *resource.Controller

	// Now overrides the clock.
	Now func() time.Time
}

// Loader runs load tasks against a materializer and keeps the registry
// of active task ids.
type Loader struct {
	src   Materializer
	batch int
	par   int
	pause time.Duration
	rc    *resource.Controller
	now   func() time.Time

	mu    sync.Mutex
	tasks map[uuid.UUID]struct{}
}

// New creates a Loader from cfg.
func New(cfg Config) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loader{
		src:   cfg.Source,
		batch: cfg.BatchSize,
		par:   cfg.Parallelism,
		pause: cfg.Pause,
		rc:    cfg.Resources,
		now:   cfg.Now,
		tasks: make(map[uuid.UUID]struct{}),
	}
}

// Run loads the container synchronously and returns when every batch
// has completed, the task was canceled, or the context ended. A
// container with no children completes immediately without events.
func (l *Loader) Run(ctx context.Context, req Request) (Report, error) {
	id := uuid.New()
	l.register(id)
	defer l.unregister(id)
	return l.run(ctx, id, req)
}

// Start launches the task in the background and returns its id. The
// task waits for a load slot before its first batch, so Start bounds
// background work by the controller's slot budget. Completion is
// observable through the progress callback and Active.
func (l *Loader) Start(ctx context.Context, req Request) (uuid.UUID, error) {
	if ctx.Err() != nil {
		return uuid.Nil, ctx.Err()
	}
	id := uuid.New()
	l.register(id)
	go func() {
		defer l.unregister(id)
		if err := l.rc.AcquireSlot(ctx); err != nil {
			return
		}
		defer l.rc.ReleaseSlot()
		l.run(ctx, id, req) //nolint:errcheck // observable via progress callback
	}()
	return id, nil
}

// Cancel removes the task from the registry so its next batch is never
// scheduled. The batch in flight, if any, still completes. It reports
// whether the id was active.
func (l *Loader) Cancel(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tasks[id]; !ok {
		return false
	}
	delete(l.tasks, id)
	return true
}

// Active returns the ids of all registered tasks in stable order.
func (l *Loader) Active() []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uuid.UUID, 0, len(l.tasks))
	for id := range l.tasks {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (l *Loader) register(id uuid.UUID) {
	l.mu.Lock()
	l.tasks[id] = struct{}{}
	l.mu.Unlock()
}

func (l *Loader) unregister(id uuid.UUID) {
	l.mu.Lock()
	delete(l.tasks, id)
	l.mu.Unlock()
}

func (l *Loader) active(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tasks[id]
	return ok
}

func (l *Loader) run(ctx context.Context, id uuid.UUID, req Request) (Report, error) {
	start := l.now()
	descs, err := l.src.Descriptors(req.Locator, req.Hash, 0, 0, "")
	if err != nil {
		return Report{TaskID: id}, fmt.Errorf("list children: %w", err)
	}

	priority, remainder := split(descs, req.Priority)
	total := len(descs)
	if total == 0 {
		return Report{TaskID: id, Duration: l.now().Sub(start)}, nil
	}

	var loaded, failed atomic.Int64
	emit := func(phase Phase) {
		if req.OnProgress == nil {
			return
		}
		done := int(loaded.Load() + failed.Load())
		req.OnProgress(Progress{
			TaskID:     id,
			Phase:      phase,
			Percentage: float64(done) / float64(total) * 100,
			Loaded:     int(loaded.Load()),
			Failed:     int(failed.Load()),
			Total:      total,
			ETAMillis:  l.eta(start, done, total),
		})
	}

	groups := []struct {
		phase Phase
		descs []symbol.Descriptor
	}{
		{PhasePriority, priority},
		{PhaseRemainder, remainder},
	}
	first := true
	for _, grp := range groups {
		for off := 0; off < len(grp.descs); off += l.batch {
			if err := ctx.Err(); err != nil {
				return l.report(id, start, &loaded, &failed, total, false), err
			}
			if !l.active(id) {
				return l.report(id, start, &loaded, &failed, total, true), nil
			}
			if !first {
				if err := l.yield(ctx); err != nil {
					return l.report(id, start, &loaded, &failed, total, false), err
				}
			}
			first = false

			end := off + l.batch
			if end > len(grp.descs) {
				end = len(grp.descs)
			}
			l.loadBatch(ctx, req, grp.descs[off:end], &loaded, &failed)
			emit(grp.phase)
		}
	}
	return l.report(id, start, &loaded, &failed, total, false), nil
}

func (l *Loader) loadBatch(ctx context.Context, req Request, batch []symbol.Descriptor, loaded, failed *atomic.Int64) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.par)
	for _, d := range batch {
		d := d
		g.Go(func() error {
			_, err := l.src.Materialize(gctx, req.Locator, req.Hash, d.Kind, d.ID, d.Name)
			if err != nil {
				failed.Add(1)
			} else {
				loaded.Add(1)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors, failures are counted
}

// yield pauses between batches: the configured sleep plus whatever the
// resource controller's pacer imposes.
func (l *Loader) yield(ctx context.Context) error {
	if l.pause > 0 {
		t := time.NewTimer(l.pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return l.rc.Pace(ctx)
}

func (l *Loader) eta(start time.Time, done, total int) int64 {
	if done == 0 || done >= total {
		return 0
	}
	elapsed := l.now().Sub(start)
	remaining := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
	return remaining.Milliseconds()
}

func (l *Loader) report(id uuid.UUID, start time.Time, loaded, failed *atomic.Int64, total int, canceled bool) Report {
	return Report{
		TaskID:   id,
		Loaded:   int(loaded.Load()),
		Failed:   int(failed.Load()),
		Total:    total,
		Duration: l.now().Sub(start),
		Canceled: canceled,
	}
}

// split partitions descriptors into the priority group, ordered by the
// priority list, and the remainder in document order.
func split(descs []symbol.Descriptor, priority []symbol.Kind) (prio, rest []symbol.Descriptor) {
	if len(priority) == 0 {
		return nil, descs
	}
	rank := make(map[symbol.Kind]int, len(priority))
	for i, k := range priority {
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}
	for _, d := range descs {
		if _, ok := rank[d.Kind]; ok {
			prio = append(prio, d)
		} else {
			rest = append(rest, d)
		}
	}
	sort.SliceStable(prio, func(i, j int) bool {
		return rank[prio[i].Kind] < rank[prio[j].Kind]
	})
	return prio, rest
}
