package bvh

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
)

// A submitter that records submissions and resolves them on demand so
// tests control build completion order.
type buildRecorder struct {
	builds  []*BuildFuture
	nextErr error
}

func (r *buildRecorder) Submit(snap *scene.Snapshot, params Params) (*BuildFuture, error) {
	if r.nextErr != nil {
		return nil, r.nextErr
	}
	b := &BuildFuture{
		object:     snap.Object,
		generation: snap.Generation,
		snap:       snap,
		params:     params,
		doneChan:   make(chan struct{}, 0),
	}
	r.builds = append(r.builds, b)
	return b, nil
}

func (r *buildRecorder) complete(b *BuildFuture) {
	tree, err := NewTree(b.snap, b.params)
	b.resolve(tree, err)
}

type stubSource struct {
	category  scene.Category
	transform types.Mat4
	parts     []scene.MeshPart
}

func newStubSource(category scene.Category, parts ...scene.MeshPart) *stubSource {
	return &stubSource{category: category, transform: types.Ident4(), parts: parts}
}

func (s *stubSource) Category() scene.Category {
	return s.category
}

func (s *stubSource) WorldTransform() types.Mat4 {
	return s.transform
}

func (s *stubSource) PosedParts() []scene.MeshPart {
	return s.parts
}

func squarePart(z float32) scene.MeshPart {
	return scene.MeshPart{Vertices: squareVerts(z)}
}

func TestStorePublishesInitialBuild(t *testing.T) {
	rec := &buildRecorder{}
	store, err := NewStore(rec, StoreOptions{})
	if err != nil {
		t.Fatalf("expected store setup to succeed; got %v", err)
	}

	h, err := store.Track("square", newStubSource(scene.Prop, squarePart(0)))
	if err != nil {
		t.Fatalf("expected track to succeed; got %v", err)
	}
	if len(rec.builds) != 1 {
		t.Fatalf("expected track to submit an initial build; got %d submissions", len(rec.builds))
	}

	store.Sync()
	if h.Tree() != nil {
		t.Fatal("expected no tree while the build is unresolved")
	}

	rec.complete(rec.builds[0])
	store.Sync()

	tree := h.Tree()
	if tree == nil {
		t.Fatal("expected the resolved build to be published")
	}
	if tree.Generation != 1 || len(tree.Tris) != 2 {
		t.Fatalf("expected a generation 1 tree with 2 tris; got generation %d with %d tris", tree.Generation, len(tree.Tris))
	}
}

func TestStoreRefitsPoseOnlyChanges(t *testing.T) {
	rec := &buildRecorder{}
	store, _ := NewStore(rec, StoreOptions{})

	model := scene.NewModel(scene.Prop, squarePart(0))
	h, err := store.Track("square", model)
	if err != nil {
		t.Fatalf("expected track to succeed; got %v", err)
	}
	rec.complete(rec.builds[0])
	store.Sync()

	ray := NewRay(types.Vec3{0, 0, 1}, types.Vec3{0, 0, -1})
	hit, ok := h.Tree().CastNearest(ray, float32(math.Inf(1)))
	if !ok || !almostEq(hit.Distance, 1.0, 1e-4) {
		t.Fatalf("expected the initial square hit at distance 1.0; got %v %v", hit, ok)
	}
	if !almostEqVec3(hit.Point, types.Vec3{0, 0, 0}, 1e-4) {
		t.Fatalf("expected the initial hit at the origin; got %v", hit.Point)
	}

	// Animate the square away from the ray origin; same topology
	built := h.Tree()
	model.SetTransform(types.Translate4(types.Vec3{0, 0, -5}))
	store.Sync()

	if len(rec.builds) != 1 {
		t.Fatalf("expected a pose-only change to refit without a rebuild; got %d submissions", len(rec.builds))
	}
	if h.Tree() != built {
		t.Fatal("expected the refit to keep the published tree")
	}

	hit, ok = h.Tree().CastNearest(ray, float32(math.Inf(1)))
	if !ok || !almostEq(hit.Distance, 6.0, 1e-3) {
		t.Fatalf("expected the moved square hit at distance 6.0; got %v %v", hit, ok)
	}
}

func TestStoreSupersedesStaleBuild(t *testing.T) {
	scenarios := []struct {
		name       string
		staleFirst bool
	}{
		{"stale build completes first", true},
		{"stale build completes last", false},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			rec := &buildRecorder{}
			store, _ := NewStore(rec, StoreOptions{})

			src := newStubSource(scene.Prop, squarePart(0))
			h, err := store.Track("obj", src)
			if err != nil {
				t.Fatalf("expected track to succeed; got %v", err)
			}

			// Change topology while the first build is still pending
			src.parts = append(src.parts, squarePart(1))
			store.Sync()

			if len(rec.builds) != 2 {
				t.Fatalf("expected a superseding submission; got %d submissions", len(rec.builds))
			}
			stale, fresh := rec.builds[0], rec.builds[1]
			if stale.Generation() != 1 || fresh.Generation() != 2 {
				t.Fatalf("expected generations 1 and 2; got %d and %d", stale.Generation(), fresh.Generation())
			}

			if sc.staleFirst {
				rec.complete(stale)
				store.Sync()
				if h.Tree() != nil {
					t.Fatal("expected the superseded build to be discarded")
				}
				rec.complete(fresh)
				store.Sync()
			} else {
				rec.complete(fresh)
				store.Sync()
				rec.complete(stale)
				store.Sync()
			}

			tree := h.Tree()
			if tree == nil || tree.Generation != 2 {
				t.Fatalf("expected the generation 2 tree to win; got %+v", tree)
			}
			if len(tree.Tris) != 4 {
				t.Fatalf("expected the published tree to carry the new topology; got %d tris", len(tree.Tris))
			}
		})
	}
}

func TestStoreUntrackDiscardsInFlightBuild(t *testing.T) {
	rec := &buildRecorder{}
	store, _ := NewStore(rec, StoreOptions{})

	h, err := store.Track("doomed", newStubSource(scene.Prop, squarePart(0)))
	if err != nil {
		t.Fatalf("expected track to succeed; got %v", err)
	}

	store.Untrack("doomed")
	if !h.Removed() {
		t.Fatal("expected the handle to be flagged removed")
	}

	// The in-flight build resolves after the unload
	rec.complete(rec.builds[0])
	store.Sync()

	if h.Tree() != nil {
		t.Fatal("expected the untracked object to stay unpublished")
	}
	if targets := store.Targets(); len(targets) != 0 {
		t.Fatalf("expected no targets after untrack; got %d", len(targets))
	}
}

func TestStoreMarkDirtyForcesRebuild(t *testing.T) {
	rec := &buildRecorder{}
	store, _ := NewStore(rec, StoreOptions{})

	h, _ := store.Track("obj", newStubSource(scene.Prop, squarePart(0)))
	rec.complete(rec.builds[0])
	store.Sync()
	built := h.Tree()

	store.MarkDirty("obj")
	store.Sync()
	if len(rec.builds) != 2 {
		t.Fatalf("expected a forced rebuild submission; got %d submissions", len(rec.builds))
	}

	rec.complete(rec.builds[1])
	store.Sync()
	tree := h.Tree()
	if tree == built || tree.Generation != 2 {
		t.Fatalf("expected a fresh generation 2 tree; got generation %d", tree.Generation)
	}
}

func TestStoreKeepsPreviousTreeOnSubmitFailure(t *testing.T) {
	rec := &buildRecorder{}
	store, _ := NewStore(rec, StoreOptions{})

	h, _ := store.Track("obj", newStubSource(scene.Prop, squarePart(0)))
	rec.complete(rec.builds[0])
	store.Sync()

	rec.nextErr = ErrBusy
	store.MarkDirty("obj")
	store.Sync()

	if tree := h.Tree(); tree == nil || tree.Generation != 1 {
		t.Fatalf("expected the previous tree to survive the rejected submission; got %+v", tree)
	}

	// Queue pressure clears; the dirty mark is retried
	rec.nextErr = nil
	store.Sync()
	if len(rec.builds) != 2 {
		t.Fatalf("expected the rebuild to be retried; got %d submissions", len(rec.builds))
	}

	rec.complete(rec.builds[1])
	store.Sync()
	if tree := h.Tree(); tree.Generation != 2 {
		t.Fatalf("expected the retried rebuild to publish generation 2; got %d", tree.Generation)
	}
}

func TestStoreSetupValidation(t *testing.T) {
	rec := &buildRecorder{}

	if _, err := NewStore(rec, StoreOptions{Params: Params{MaxLeafTris: -1}}); err != ErrInvalidLeafSize {
		t.Fatalf("expected ErrInvalidLeafSize; got %v", err)
	}

	store, err := NewStore(rec, StoreOptions{})
	if err != nil {
		t.Fatalf("expected default params to be accepted; got %v", err)
	}

	src := newStubSource(scene.Prop, squarePart(0))
	if _, err := store.TrackWithParams("obj", src, Params{MaxLeafTris: 0}); err != ErrInvalidLeafSize {
		t.Fatalf("expected ErrInvalidLeafSize; got %v", err)
	}

	if _, err := store.Track("obj", src); err != nil {
		t.Fatalf("expected track to succeed; got %v", err)
	}
	if _, err := store.Track("obj", src); err == nil {
		t.Fatal("expected tracking a duplicate id to fail")
	}
}

func TestStoreStatsTable(t *testing.T) {
	rec := &buildRecorder{}
	store, _ := NewStore(rec, StoreOptions{})

	store.Track("square", newStubSource(scene.Prop, squarePart(0)))
	rec.complete(rec.builds[0])
	store.Sync()

	stats := store.Stats()
	for _, want := range []string{"Object", "square", "prop", "Total"} {
		if !strings.Contains(stats, want) {
			t.Fatalf("expected stats table to mention %q; got:\n%s", want, stats)
		}
	}
}

func TestStoreWithWorkerEndToEnd(t *testing.T) {
	w := NewWorker(2, 8)
	w.Start()
	defer w.Close()

	store, err := NewStore(w, StoreOptions{})
	if err != nil {
		t.Fatalf("expected store setup to succeed; got %v", err)
	}

	h, err := store.Track("square", scene.NewModel(scene.Prop, squarePart(0)))
	if err != nil {
		t.Fatalf("expected track to succeed; got %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.Tree() == nil && time.Now().Before(deadline) {
		store.Sync()
		time.Sleep(5 * time.Millisecond)
	}
	if h.Tree() == nil {
		t.Fatal("expected the background build to publish a tree")
	}

	hit, ok := h.Tree().CastNearest(NewRay(types.Vec3{0, 0, 1}, types.Vec3{0, 0, -1}), float32(math.Inf(1)))
	if !ok || !almostEq(hit.Distance, 1.0, 1e-4) {
		t.Fatalf("expected the square hit at distance 1.0; got %v %v", hit, ok)
	}
}
