package main

import (
	"os"

	"github.com/ArbiusIntern/amicaxr/cmd"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

func main() {
	// Optional .env file with AMICAXR_* overrides for the flag defaults.
	godotenv.Load()

	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "amicaxr"
	app.Usage = "pose, pick and profile animated scenes"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "simulate",
			Usage: "run the frame loop against the built-in scene",
			Description: `
Track the built-in room, animated avatar and pedestal (plus any wavefront
props passed as arguments), then run the frame loop for a fixed number of
frames while a synthetic pointer and controller pick against the scene.

Tree builds run on background workers while the avatar refits its tree
every frame. Hit counts, per-phase timings and tree statistics are printed
when the run completes.`,
			ArgsUsage: "[prop1.obj prop2.obj ...]",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:   "frames, n",
					Value:  300,
					Usage:  "number of frames to simulate",
					EnvVar: "AMICAXR_FRAMES",
				},
				cli.Float64Flag{
					Name:   "dt",
					Value:  1.0 / 90.0,
					Usage:  "frame time step in seconds",
					EnvVar: "AMICAXR_DT",
				},
				cli.IntFlag{
					Name:   "workers",
					Value:  0,
					Usage:  "tree build workers (0 selects one per spare cpu)",
					EnvVar: "AMICAXR_WORKERS",
				},
				cli.IntFlag{
					Name:   "leaf-size",
					Value:  0,
					Usage:  "max triangles per tree leaf (0 selects the built-in default)",
					EnvVar: "AMICAXR_LEAF_SIZE",
				},
				cli.IntFlag{
					Name:  "sync-every",
					Value: 1,
					Usage: "run the tree sync phase every n-th frame",
				},
				cli.Float64Flag{
					Name:  "sync-budget",
					Value: 2.0,
					Usage: "soft budget for the tree sync phase in ms",
				},
				cli.Float64Flag{
					Name:  "cast-budget",
					Value: 1.0,
					Usage: "soft budget for the raycast phase in ms",
				},
			},
			Action: cmd.Simulate,
		},
		{
			Name:  "inspect",
			Usage: "build trees for wavefront models and probe them",
			Description: `
Parse each wavefront obj file, build a tree for it on the worker pool and
print the tree statistics together with the result of a probe ray cast at
the model center.`,
			ArgsUsage: "model1.obj model2.obj ...",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:   "leaf-size",
					Value:  0,
					Usage:  "max triangles per tree leaf (0 selects the built-in default)",
					EnvVar: "AMICAXR_LEAF_SIZE",
				},
			},
			Action: cmd.Inspect,
		},
	}

	app.Run(os.Args)
}
