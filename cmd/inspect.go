package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ArbiusIntern/amicaxr/bvh"
	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Build a tree for each wavefront model and probe it with a test ray.
func Inspect(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() == 0 {
		return errors.New("missing model file argument")
	}

	worker := bvh.NewWorker(0, 0)
	worker.Start()
	defer worker.Close()

	params := bvh.Params{MaxLeafTris: ctx.Int("leaf-size")}
	if params.MaxLeafTris == 0 {
		params.MaxLeafTris = bvh.DefaultMaxLeafTris
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		modelFile := ctx.Args().Get(idx)
		if !strings.HasSuffix(modelFile, ".obj") {
			logger.Warningf("skipping unsupported file %s", modelFile)
			continue
		}

		logger.Noticef("building tree for %s", modelFile)
		model, err := scene.LoadWavefront(modelFile, scene.Prop)
		if err != nil {
			return err
		}

		snap, _ := scene.Capture(scene.ObjectID(modelFile), model, nil)
		build, err := worker.Submit(snap, params)
		if err != nil {
			return err
		}

		tree, err := build.Tree()
		if err != nil {
			return err
		}

		displayTreeStats(modelFile, tree)
		probeTree(tree)
	}

	return nil
}

func displayTreeStats(name string, tree *bvh.Tree) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Model", "Nodes", "Leafs", "Max depth", "Triangles", "Build time"})
	table.Append([]string{
		name,
		fmt.Sprintf("%d", tree.Stats.Nodes),
		fmt.Sprintf("%d", tree.Stats.Leafs),
		fmt.Sprintf("%d", tree.Stats.MaxDepth),
		fmt.Sprintf("%d", tree.Stats.Tris),
		fmt.Sprintf("%s", tree.Stats.BuildTime),
	})
	table.Render()
	logger.Noticef("tree statistics\n%s", buf.String())
}

// Cast a ray at the model from outside its bounds and report what it hits.
func probeTree(tree *bvh.Tree) {
	if len(tree.Nodes) == 0 {
		logger.Notice("empty tree; skipping probe ray")
		return
	}

	root := tree.Nodes[0]
	center := root.Min.Add(root.Max).Mul(0.5).Add(tree.Center)
	size := root.Max.Sub(root.Min).Len()
	origin := center.Add(types.Vec3{0, 0, size + 1})

	ray := bvh.NewRay(origin, center.Sub(origin))
	hit, ok := tree.CastNearest(ray, 2*size+2)
	if !ok {
		logger.Notice("probe ray missed the model")
		return
	}

	logger.Noticef("probe ray hit triangle %d at %v, distance %.3f", hit.Tri, hit.Point, hit.Distance)
}
