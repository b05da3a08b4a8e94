package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/ArbiusIntern/amicaxr/bvh"
	"github.com/ArbiusIntern/amicaxr/frame"
	"github.com/ArbiusIntern/amicaxr/pick"
	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

const (
	// Angular sweep rate for the synthetic pointer (rad/sec).
	pointerSweepRate = 0.7

	// Max yaw the synthetic pointer sweeps to either side (rad).
	pointerSweepWidth = 0.9

	// Downward pitch of the synthetic controller ray (rad).
	controllerPitch = 0.4
)

// pointerRig emits the frame's synthetic pick queries: a head-height
// pointer sweeping across the room and a controller aimed at the floor.
type pointerRig struct {
	t float64
}

func (r *pointerRig) UpdatePose(t float64) {
	r.t = t
}

func (r *pointerRig) Rays() []pick.Query {
	yaw := pointerSweepWidth * math.Sin(r.t*pointerSweepRate)
	pointerDir := types.Vec3{
		float32(math.Sin(yaw)),
		0,
		-float32(math.Cos(yaw)),
	}
	controllerDir := types.Vec3{
		0,
		-float32(math.Sin(controllerPitch)),
		-float32(math.Cos(controllerPitch)),
	}

	return []pick.Query{
		{
			Source: pick.Pointer,
			Origin: types.Vec3{0, 1.6, 3},
			Dir:    pointerDir,
		},
		{
			Source:       pick.ControllerRight,
			Origin:       types.Vec3{0.3, 1.1, 3},
			Dir:          controllerDir,
			FirstHitOnly: true,
		},
	}
}

// hitTally counts the hits each object receives and tracks the nearest one.
type hitTally struct {
	counts  map[scene.ObjectID]int
	nearest map[scene.ObjectID]float32
	total   int
}

func newHitTally() *hitTally {
	return &hitTally{
		counts:  make(map[scene.ObjectID]int),
		nearest: make(map[scene.ObjectID]float32),
	}
}

func (h *hitTally) OnHit(hit pick.Hit) {
	h.total++
	h.counts[hit.Object]++
	if d, exists := h.nearest[hit.Object]; !exists || hit.Distance < d {
		h.nearest[hit.Object] = hit.Distance
	}
}

// phaseTally accumulates per-phase timings across the simulated frames.
type phaseTally struct {
	total map[frame.Phase]time.Duration
	max   map[frame.Phase]time.Duration
	runs  map[frame.Phase]int
}

func newPhaseTally() *phaseTally {
	return &phaseTally{
		total: make(map[frame.Phase]time.Duration),
		max:   make(map[frame.Phase]time.Duration),
		runs:  make(map[frame.Phase]int),
	}
}

func (p *phaseTally) Record(phase frame.Phase, d time.Duration) {
	p.total[phase] += d
	if d > p.max[phase] {
		p.max[phase] = d
	}
	p.runs[phase]++
}

// Run the frame loop against the built-in room, avatar and pedestal plus
// any wavefront props passed as arguments.
func Simulate(ctx *cli.Context) error {
	setupLogging(ctx)

	frames := ctx.Int("frames")
	dt := ctx.Float64("dt")
	if frames <= 0 {
		return errors.New("frame count must be a positive number")
	}
	if dt <= 0 {
		return errors.New("dt must be a positive number of seconds")
	}

	worker := bvh.NewWorker(ctx.Int("workers"), 0)
	worker.Start()
	defer worker.Close()

	store, err := bvh.NewStore(worker, bvh.StoreOptions{
		Params: bvh.Params{MaxLeafTris: ctx.Int("leaf-size")},
	})
	if err != nil {
		return err
	}

	avatar := scene.NewAvatar(types.Vec3{0, 0, -1})
	if _, err = store.Track("room", scene.NewRoom(10, 3, 8)); err != nil {
		return err
	}
	if _, err = store.Track("avatar", avatar); err != nil {
		return err
	}
	if _, err = store.Track("pedestal", scene.NewPedestal(types.Vec3{2, 0, -2}, 0.8)); err != nil {
		return err
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		propFile := ctx.Args().Get(idx)
		model, err := scene.LoadWavefront(propFile, scene.Prop)
		if err != nil {
			return err
		}

		id := scene.ObjectID(strings.TrimSuffix(filepath.Base(propFile), filepath.Ext(propFile)))
		if _, err = store.Track(id, model); err != nil {
			return err
		}
		logger.Noticef("tracking prop %q from %s", id, propFile)
	}

	rig := &pointerRig{}
	hits := newHitTally()
	phases := newPhaseTally()

	loop, err := frame.New(frame.Options{
		Store:      store,
		Dispatcher: pick.NewDispatcher(),
		Input:      rig,
		Observer:   hits,
		Telemetry:  phases,
		Updaters:   []frame.Updater{avatar, rig},
		Budgets: frame.Budgets{
			frame.PhaseTreeSync: time.Duration(ctx.Float64("sync-budget") * float64(time.Millisecond)),
			frame.PhaseRaycast:  time.Duration(ctx.Float64("cast-budget") * float64(time.Millisecond)),
		},
		SyncEvery: ctx.Int("sync-every"),
	})
	if err != nil {
		return err
	}

	logger.Noticef("simulating %d frames at dt %.4f sec", frames, dt)
	start := time.Now()
	for i := 0; i < frames; i++ {
		if err = loop.Step(dt); err != nil {
			return err
		}
	}
	logger.Noticef("simulated %d frames in %d ms", frames, time.Since(start).Nanoseconds()/1000000)

	logger.Noticef("tree store statistics:\n%s", store.Stats())
	displayPhaseStats(phases)
	displayHitStats(hits, store)

	return nil
}

func displayPhaseStats(tally *phaseTally) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Phase", "Runs", "Avg", "Max"})
	for phase := frame.PhasePoseUpdate; phase <= frame.PhaseTelemetry; phase++ {
		runs := tally.runs[phase]
		if runs == 0 {
			continue
		}
		table.Append([]string{
			phase.String(),
			fmt.Sprintf("%d", runs),
			fmt.Sprintf("%s", tally.total[phase]/time.Duration(runs)),
			fmt.Sprintf("%s", tally.max[phase]),
		})
	}
	table.Render()
	logger.Noticef("phase statistics\n%s", buf.String())
}

func displayHitStats(tally *hitTally, store *bvh.Store) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Object", "Category", "Hits", "Nearest"})
	for _, h := range store.Targets() {
		nearest := "-"
		if d, exists := tally.nearest[h.Object()]; exists {
			nearest = fmt.Sprintf("%.3f", d)
		}
		table.Append([]string{
			string(h.Object()),
			h.Category().String(),
			fmt.Sprintf("%d", tally.counts[h.Object()]),
			nearest,
		})
	}
	table.SetFooter([]string{"", "TOTAL", fmt.Sprintf("%d", tally.total), ""})
	table.Render()
	logger.Noticef("hit statistics\n%s", buf.String())
}
