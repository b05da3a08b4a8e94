package bvh

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/olekukonko/tablewriter"

	"github.com/ArbiusIntern/amicaxr/log"
	"github.com/ArbiusIntern/amicaxr/scene"
)

// The default maximum leaf size applied to tracked objects unless
// overridden per object. Static geometry gets the tightest possible
// leafs; frequently rebuilt objects should override with a coarser value.
const DefaultMaxLeafTris = 1

// StoreOptions tune a tree store instance.
type StoreOptions struct {
	// Build params applied by Track. A zero value selects
	// DefaultMaxLeafTris.
	Params Params
}

// Handle is the query-side view of a tracked object. The published tree
// is swapped atomically by the store so dispatchers can load it without
// locking; a nil tree means no build has completed yet.
type Handle struct {
	id       scene.ObjectID
	category scene.Category

	tree    atomic.Pointer[Tree]
	removed atomic.Bool
}

// The tracked object id.
func (h *Handle) Object() scene.ObjectID {
	return h.id
}

// The category the object was tracked under.
func (h *Handle) Category() scene.Category {
	return h.category
}

// Tree returns the most recently published tree or nil.
func (h *Handle) Tree() *Tree {
	return h.tree.Load()
}

// Removed reports whether the object was untracked. Dispatchers treat
// removed handles as per-target failures rather than query failures.
func (h *Handle) Removed() bool {
	return h.removed.Load()
}

// Book-keeping state for a tracked object.
type entry struct {
	handle *Handle
	src    scene.Source
	params Params

	// The snapshot backing the published tree. Refreshed in place on
	// pose-only frames and refitted against the tree.
	snap *scene.Snapshot

	// The in-flight build future, if any. Superseding submissions
	// replace it so only the newest build is ever integrated.
	build *BuildFuture

	// Forces a rebuild on the next sync.
	dirty bool
}

// The Submitter interface is implemented by build workers that accept
// snapshots for asynchronous tree construction.
type Submitter interface {
	Submit(snap *scene.Snapshot, params Params) (*BuildFuture, error)
}

// Store tracks hit-testable objects and keeps one tree per object up to
// date. All mutations happen on the caller's goroutine (per frame, via
// Sync) while queries read published trees atomically and never block on
// builds in progress.
type Store struct {
	logger log.Logger

	sync.Mutex

	worker Submitter
	params Params

	entries map[scene.ObjectID]*entry

	// Track-ordered ids so sync passes are deterministic.
	order []scene.ObjectID
}

// Create a store that builds trees on w. The worker must be started by
// the caller. Invalid default params are rejected outright.
func NewStore(w Submitter, opts StoreOptions) (*Store, error) {
	params := opts.Params
	if params == (Params{}) {
		params = Params{MaxLeafTris: DefaultMaxLeafTris}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Store{
		logger:  log.New("bvh store"),
		worker:  w,
		params:  params,
		entries: make(map[scene.ObjectID]*entry, 0),
	}, nil
}

// Track registers a source using the store's default build params.
func (s *Store) Track(id scene.ObjectID, src scene.Source) (*Handle, error) {
	return s.TrackWithParams(id, src, s.params)
}

// TrackWithParams registers a source with per-object build params. An
// initial snapshot is captured and submitted immediately; queries observe
// the object once its first build is integrated by Sync.
func (s *Store) TrackWithParams(id scene.ObjectID, src scene.Source, params Params) (*Handle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if _, exists := s.entries[id]; exists {
		return nil, fmt.Errorf("bvh: object %q is already tracked", id)
	}

	ent := &entry{
		handle: &Handle{id: id, category: src.Category()},
		src:    src,
		params: params,
	}
	s.entries[id] = ent
	s.order = append(s.order, id)

	if !s.submitRebuild(ent) {
		ent.dirty = true
	}
	return ent.handle, nil
}

// Untrack removes an object from the store. The handle is flagged removed
// so that queries holding it fail per-target, and any in-flight build for
// the object is abandoned; its eventual result is never integrated.
func (s *Store) Untrack(id scene.ObjectID) {
	s.Lock()
	defer s.Unlock()

	ent, exists := s.entries[id]
	if !exists {
		return
	}

	ent.handle.removed.Store(true)
	ent.handle.tree.Store(nil)
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Debugf("untracked %q", id)
}

// MarkDirty forces a rebuild of the object's tree on the next sync even
// if its topology is unchanged.
func (s *Store) MarkDirty(id scene.ObjectID) {
	s.Lock()
	defer s.Unlock()

	if ent, exists := s.entries[id]; exists {
		ent.dirty = true
	}
}

// Targets returns the handles of all tracked objects in track order.
func (s *Store) Targets() []*Handle {
	s.Lock()
	defer s.Unlock()

	targets := make([]*Handle, len(s.order))
	for i, id := range s.order {
		targets[i] = s.entries[id].handle
	}
	return targets
}

// Sync integrates finished builds and brings every tracked object up to
// date with its source. Per entry:
//
//   - a resolved build future is published to the handle
//   - pose-only changes refresh the snapshot in place and refit the
//     published tree, never touching its topology
//   - topology changes and dirty marks capture a fresh snapshot and
//     submit it, superseding any build still in flight
//
// Rejected submissions (queue pressure, stopped worker) are logged and
// retried on the next sync while queries keep hitting the previous tree.
func (s *Store) Sync() {
	s.Lock()
	defer s.Unlock()

	for _, id := range s.order {
		ent := s.entries[id]
		s.integrate(ent)
		s.refresh(ent)
	}
}

// Publish the entry's build if it has resolved.
func (s *Store) integrate(ent *entry) {
	if ent.build == nil {
		return
	}
	select {
	case <-ent.build.Done():
	default:
		return
	}

	build := ent.build
	ent.build = nil

	tree, err := build.Tree()
	if err != nil {
		s.logger.Warningf("dropping failed build for %q (generation %d): %v", ent.handle.id, build.generation, err)
		return
	}

	ent.snap = build.snap
	ent.handle.tree.Store(tree)
	s.logger.Debugf(
		"published tree for %q: generation %d, %d nodes, %d tris",
		ent.handle.id, tree.Generation, len(tree.Nodes), len(tree.Tris),
	)
}

// Bring the entry in line with its source.
func (s *Store) refresh(ent *entry) {
	if ent.dirty {
		if s.submitRebuild(ent) {
			ent.dirty = false
		}
		return
	}

	tree := ent.handle.tree.Load()
	if tree == nil {
		if ent.build == nil {
			// Retry the initial submission the worker rejected earlier.
			s.submitRebuild(ent)
			return
		}
		// A build is in flight but nothing is published yet. Supersede
		// it only if the source topology moved past its snapshot.
		if snap, changed := scene.Capture(ent.handle.id, ent.src, ent.build.snap); changed {
			s.submit(ent, snap)
		}
		return
	}

	if ent.snap.Refresh(ent.src) {
		tree.Refit(ent.snap)
		return
	}

	// Topology changed; supersede whatever build may be in flight.
	s.submitRebuild(ent)
}

// Capture a fresh snapshot and submit it for building. Returns false if
// the worker rejected the submission.
func (s *Store) submitRebuild(ent *entry) bool {
	base := ent.snap
	if ent.build != nil {
		base = ent.build.snap
	}
	return s.submit(ent, scene.Recapture(ent.handle.id, ent.src, base))
}

// Submit a snapshot for building. The new build replaces any in-flight one
// for the entry so stale results are dropped regardless of completion
// order.
func (s *Store) submit(ent *entry, snap *scene.Snapshot) bool {
	build, err := s.worker.Submit(snap, ent.params)
	if err != nil {
		s.logger.Warningf("build submission rejected for %q: %v", ent.handle.id, err)
		return false
	}
	ent.build = build
	return true
}

// Stats returns a table summarizing the published trees.
func (s *Store) Stats() string {
	s.Lock()
	defer s.Unlock()

	var totalNodes, totalTris int
	var sized []interface{}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Object", "Category", "Gen", "Nodes", "Depth", "Tris", "Size", "Build Time"})
	for _, id := range s.order {
		ent := s.entries[id]
		tree := ent.handle.tree.Load()
		if tree == nil {
			table.Append([]string{string(id), ent.handle.category.String(), "-", "-", "-", "-", "-", "building"})
			continue
		}

		totalNodes += tree.Stats.Nodes
		totalTris += tree.Stats.Tris
		sized = append(sized, tree.Nodes, tree.Tris)
		table.Append([]string{
			string(id),
			ent.handle.category.String(),
			fmt.Sprintf("%d", tree.Generation),
			fmt.Sprintf("%d", tree.Stats.Nodes),
			fmt.Sprintf("%d", tree.Stats.MaxDepth),
			fmt.Sprintf("%d", tree.Stats.Tris),
			fmtSize(tree.Nodes, tree.Tris),
			fmt.Sprintf("%d ms", tree.Stats.BuildTime.Nanoseconds()/1e6),
		})
	}
	table.SetFooter([]string{
		"Total", " ",
		" ",
		fmt.Sprintf("%d", totalNodes),
		" ",
		fmt.Sprintf("%d", totalTris),
		strings.TrimLeft(fmtSize(sized...), " "),
		" ",
	})

	table.Render()
	return buf.String()
}

// Sum the total space used by a set of slices and return back a formatted
// value with the appropriate byte/kb/mb unit.
func fmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
