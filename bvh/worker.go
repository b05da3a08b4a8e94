package bvh

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/ArbiusIntern/amicaxr/log"
	"github.com/ArbiusIntern/amicaxr/scene"
)

const (
	// Default capacity for the build submission queue.
	defaultQueueSize = 16

	// Pool workers exit after this long without work and are respawned
	// on demand.
	poolIdleTimeout = 1 * time.Second
)

// BuildFuture is the future returned by Worker.Submit. It resolves exactly once,
// either with a completed tree or a build error.
type BuildFuture struct {
	object     scene.ObjectID
	generation uint64

	snap   *scene.Snapshot
	params Params

	doneChan chan struct{}
	tree     *Tree
	err      error
}

// The object this build belongs to.
func (b *BuildFuture) Object() scene.ObjectID {
	return b.object
}

// The snapshot generation this build was submitted for.
func (b *BuildFuture) Generation() uint64 {
	return b.generation
}

// Done is closed once the build has resolved.
func (b *BuildFuture) Done() <-chan struct{} {
	return b.doneChan
}

// Tree returns the build outcome, blocking until the build resolves.
func (b *BuildFuture) Tree() (*Tree, error) {
	<-b.doneChan
	return b.tree, b.err
}

func (b *BuildFuture) resolve(tree *Tree, err error) {
	b.tree = tree
	b.err = err
	close(b.doneChan)
}

// Worker builds trees off the frame path. Submissions are queued to a
// dispatcher go-routine so that Submit never blocks the caller; the
// dispatcher hands each build to a dynamic worker pool whose workers are
// reused across builds.
type Worker struct {
	logger log.Logger

	sync.Mutex
	wg sync.WaitGroup

	// A buffered channel for queuing build requests.
	buildChan chan *BuildFuture

	// A channel for signaling the dispatcher to exit.
	closeChan chan struct{}

	// The pool that executes queued builds.
	pool worker.DynamicWorkerPool
}

// Ensure workers satisfy the store's submission interface.
var _ Submitter = &Worker{}

// Create a build worker. Non-positive arguments select the defaults: one
// pool worker per spare CPU and a queue of defaultQueueSize submissions.
// The worker must be started before it accepts submissions.
func NewWorker(workers, queueSize int) *Worker {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Worker{
		logger:    log.New("bvh worker"),
		buildChan: make(chan *BuildFuture, queueSize),
		pool:      worker.NewDynamicWorkerPool(workers, queueSize, poolIdleTimeout),
	}
}

// Start the dispatcher. Calling Start on a running worker is a no-op.
func (w *Worker) Start() {
	w.Lock()
	defer w.Unlock()

	if w.closeChan != nil {
		return
	}
	w.startDispatcher()
}

// Shutdown the worker. Builds already handed to the pool run to completion
// and resolve their futures; queued submissions that were never dispatched
// are abandoned. Calling Close on a stopped worker is a no-op.
func (w *Worker) Close() {
	w.Lock()
	defer w.Unlock()

	if w.closeChan == nil {
		return
	}

	w.closeChan <- struct{}{}

	// Wait for dispatcher to ack close and shutdown channel
	<-w.closeChan
	close(w.closeChan)
	w.closeChan = nil

	w.wg.Wait()
}

// Submit queues a snapshot for an asynchronous tree build and returns a
// future that resolves once the build completes. ErrBusy is returned when
// the queue is full and ErrWorkerUnavailable when the worker is not
// running; callers are expected to retry on a later frame.
func (w *Worker) Submit(snap *scene.Snapshot, params Params) (*BuildFuture, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	w.Lock()
	defer w.Unlock()

	if w.closeChan == nil {
		return nil, ErrWorkerUnavailable
	}

	b := &BuildFuture{
		object:     snap.Object,
		generation: snap.Generation,
		snap:       snap,
		params:     params,
		doneChan:   make(chan struct{}, 0),
	}

	select {
	case w.buildChan <- b:
		w.logger.Debugf("queued build for %q (generation %d, %d tris)", b.object, b.generation, snap.TriangleCount())
		return b, nil
	default:
		return nil, ErrBusy
	}
}

// Spawn a go-routine to dispatch queued builds onto the pool.
func (w *Worker) startDispatcher() {
	w.closeChan = make(chan struct{}, 0)

	readyChan := make(chan struct{}, 0)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		taskID := 0
		close(readyChan)
		for {
			select {
			case pending := <-w.buildChan:
				b := pending
				w.pool.SubmitTask(worker.Task{
					ID: taskID,
					Do: func() (any, error) {
						tree, err := NewTree(b.snap, b.params)
						if err != nil {
							w.logger.Warningf("build failed for %q (generation %d): %v", b.object, b.generation, err)
						}
						b.resolve(tree, err)
						return nil, nil
					},
				})
				taskID++
			case <-w.closeChan:
				// Ack close
				w.closeChan <- struct{}{}
				return
			}
		}
	}()

	// Wait for the dispatcher to start
	<-readyChan
}
