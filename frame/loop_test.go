package frame

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ArbiusIntern/amicaxr/bvh"
	"github.com/ArbiusIntern/amicaxr/pick"
	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
)

type phaseRecorder struct {
	phases []Phase
}

func (r *phaseRecorder) Record(phase Phase, d time.Duration) {
	r.phases = append(r.phases, phase)
}

type rayInput struct {
	queries []pick.Query
}

func (in *rayInput) Rays() []pick.Query {
	return in.queries
}

type stubRenderer struct {
	calls int
	delay time.Duration
	err   error
}

func (r *stubRenderer) Render() error {
	r.calls++
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.err
}

type hitRecorder struct {
	hits []pick.Hit
}

func (r *hitRecorder) OnHit(hit pick.Hit) {
	r.hits = append(r.hits, hit)
}

type clockRecorder struct {
	times []float64
}

func (r *clockRecorder) UpdatePose(t float64) {
	r.times = append(r.times, t)
}

// Unit square centered on the x/y origin at depth z.
func squareAt(z float32) scene.MeshPart {
	return scene.MeshPart{Vertices: []types.Vec3{
		{-0.5, -0.5, z}, {0.5, -0.5, z}, {0.5, 0.5, z},
		{-0.5, -0.5, z}, {0.5, 0.5, z}, {-0.5, 0.5, z},
	}}
}

// Track a single square prop at depth z and wait for its build to publish.
func makeStore(t *testing.T, z float32) (*bvh.Store, func()) {
	t.Helper()

	w := bvh.NewWorker(2, 16)
	w.Start()
	store, err := bvh.NewStore(w, bvh.StoreOptions{})
	if err != nil {
		t.Fatalf("expected store setup to succeed; got %v", err)
	}
	if _, err := store.Track("square", scene.NewModel(scene.Prop, squareAt(z))); err != nil {
		t.Fatalf("expected tracking to succeed; got %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		store.Sync()
		targets := store.Targets()
		if len(targets) == 1 && targets[0].Tree() != nil {
			return store, w.Close
		}
		time.Sleep(5 * time.Millisecond)
	}
	w.Close()
	t.Fatal("expected tracked object to build in time")
	return nil, nil
}

func pointerQuery() pick.Query {
	return pick.Query{
		Source: pick.Pointer,
		Origin: types.Vec3{0, 0, 1},
		Dir:    types.Vec3{0, 0, -1},
	}
}

func TestLoopRequiresCollaborators(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	if _, err := New(Options{}); err != ErrNoStore {
		t.Fatalf("expected ErrNoStore; got %v", err)
	}
	if _, err := New(Options{Store: store}); err != ErrNoDispatcher {
		t.Fatalf("expected ErrNoDispatcher; got %v", err)
	}
	if _, err := New(Options{Store: store, Dispatcher: pick.NewDispatcher()}); err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}
}

func TestLoopPhaseOrder(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	telemetry := &phaseRecorder{}
	loop, err := New(Options{
		Store:      store,
		Dispatcher: pick.NewDispatcher(),
		Input:      &rayInput{queries: []pick.Query{pointerQuery()}},
		Renderer:   &stubRenderer{},
		Telemetry:  telemetry,
	})
	if err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}

	if err := loop.Step(0.016); err != nil {
		t.Fatalf("expected frame to succeed; got %v", err)
	}

	expPhases := []Phase{PhasePoseUpdate, PhaseTreeSync, PhaseRender, PhaseRaycast}
	if !reflect.DeepEqual(telemetry.phases, expPhases) {
		t.Fatalf("expected telemetry for phases %v; got %v", expPhases, telemetry.phases)
	}

	stats := loop.Stats()
	if len(stats.Phases) != 5 {
		t.Fatalf("expected 5 phase stats; got %d", len(stats.Phases))
	}
	if last := stats.Phases[len(stats.Phases)-1].Phase; last != PhaseTelemetry {
		t.Fatalf("expected last phase to be telemetry; got %v", last)
	}
	if stats.Frame != 1 {
		t.Fatalf("expected frame counter 1; got %d", stats.Frame)
	}
}

func TestLoopBudgetOverrunNeverAborts(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	observer := &hitRecorder{}
	loop, err := New(Options{
		Store:      store,
		Dispatcher: pick.NewDispatcher(),
		Input:      &rayInput{queries: []pick.Query{pointerQuery()}},
		Renderer:   &stubRenderer{delay: 5 * time.Millisecond},
		Observer:   observer,
		Budgets:    Budgets{PhaseRender: time.Nanosecond},
	})
	if err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}

	if err := loop.Step(0.016); err != nil {
		t.Fatalf("expected overrunning frame to succeed; got %v", err)
	}

	stats := loop.Stats()
	var renderStat *PhaseStat
	for i, stat := range stats.Phases {
		if stat.Phase == PhaseRender {
			renderStat = &stats.Phases[i]
		}
	}
	if renderStat == nil {
		t.Fatal("expected a render phase stat")
	}
	if !renderStat.OverBudget {
		t.Fatalf("expected render phase to be flagged over budget (took %s)", renderStat.Duration)
	}
	if len(observer.hits) != 1 {
		t.Fatalf("expected the raycast phase to still run; got %d hits", len(observer.hits))
	}
}

func TestLoopSyncCadence(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	telemetry := &phaseRecorder{}
	loop, err := New(Options{
		Store:      store,
		Dispatcher: pick.NewDispatcher(),
		Telemetry:  telemetry,
		SyncEvery:  3,
	})
	if err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}

	for i := 0; i < 6; i++ {
		if err := loop.Step(0.016); err != nil {
			t.Fatalf("expected frame %d to succeed; got %v", i+1, err)
		}
	}

	syncs := 0
	for _, phase := range telemetry.phases {
		if phase == PhaseTreeSync {
			syncs++
		}
	}
	if syncs != 2 {
		t.Fatalf("expected 2 sync phases over 6 frames; got %d", syncs)
	}
}

func TestLoopForwardsHitsToObserver(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	observer := &hitRecorder{}
	loop, err := New(Options{
		Store:      store,
		Dispatcher: pick.NewDispatcher(),
		Input:      &rayInput{queries: []pick.Query{pointerQuery()}},
		Observer:   observer,
	})
	if err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}

	if err := loop.Step(0.016); err != nil {
		t.Fatalf("expected frame to succeed; got %v", err)
	}

	if len(observer.hits) != 1 {
		t.Fatalf("expected 1 hit; got %d", len(observer.hits))
	}
	hit := observer.hits[0]
	if hit.Object != "square" {
		t.Fatalf("expected hit on square; got %q", hit.Object)
	}
	if hit.Source != pick.Pointer {
		t.Fatalf("expected hit tagged with the pointer source; got %v", hit.Source)
	}
	if !almostEq(hit.Distance, 2.0, 1e-4) {
		t.Fatalf("expected hit at distance 2.0; got %f", hit.Distance)
	}
	if loop.Stats().Hits != 1 {
		t.Fatalf("expected frame stats to report 1 hit; got %d", loop.Stats().Hits)
	}
}

func TestLoopRenderErrorPropagates(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	expErr := errors.New("device lost")
	telemetry := &phaseRecorder{}
	loop, err := New(Options{
		Store:      store,
		Dispatcher: pick.NewDispatcher(),
		Renderer:   &stubRenderer{err: expErr},
		Telemetry:  telemetry,
	})
	if err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}

	if err := loop.Step(0.016); err != expErr {
		t.Fatalf("expected render error to propagate; got %v", err)
	}

	// The failed frame still runs its remaining phases.
	if last := telemetry.phases[len(telemetry.phases)-1]; last != PhaseRaycast {
		t.Fatalf("expected the raycast phase to run after the render error; got %v", last)
	}
}

func TestLoopAdvancesClock(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	updater := &clockRecorder{}
	loop, err := New(Options{
		Store:      store,
		Dispatcher: pick.NewDispatcher(),
		Updaters:   []Updater{updater},
	})
	if err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := loop.Step(0.25); err != nil {
			t.Fatalf("expected frame to succeed; got %v", err)
		}
	}

	if !reflect.DeepEqual(updater.times, []float64{0.25, 0.5}) {
		t.Fatalf("expected pose updates at 0.25 and 0.5; got %v", updater.times)
	}
	if loop.Frame() != 2 {
		t.Fatalf("expected frame counter 2; got %d", loop.Frame())
	}
}

func TestLoopSkipsMissingCollaborators(t *testing.T) {
	store, closeFn := makeStore(t, -1)
	defer closeFn()

	loop, err := New(Options{Store: store, Dispatcher: pick.NewDispatcher()})
	if err != nil {
		t.Fatalf("expected loop setup to succeed; got %v", err)
	}

	if err := loop.Step(0.016); err != nil {
		t.Fatalf("expected frame to succeed; got %v", err)
	}

	for _, stat := range loop.Stats().Phases {
		if stat.Phase == PhaseRender {
			t.Fatal("expected no render phase without a renderer")
		}
	}
	if loop.Stats().Hits != 0 {
		t.Fatalf("expected no hits without an input source; got %d", loop.Stats().Hits)
	}
}

func almostEq(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}
