// Package cli contains all business logic needed by the localnav command.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagLogFile  = "log-file"
	flagDuration = "duration"
	flagWatch    = "watch"
	flagX        = "x"
	flagY        = "y"
	flagFrame    = "frame"
	flagReactive = "reactive"
	flagYawDegs  = "yaw-degs"
	flagFull     = "full"
	flagTrace    = "trace"
)

var configFlag = &cli.StringFlag{
	Name:     flagConfig,
	Aliases:  []string{"c"},
	Usage:    "load configuration from `FILE`",
	Required: true,
}

var traceFlag = &cli.BoolFlag{
	Name:  flagTrace,
	Usage: "log every decision of this run at debug level",
}

var app = &cli.App{
	Name:            "localnav",
	Usage:           "reactive local navigation for a mobile base",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  flagLogFile,
			Usage: "also write logs to `FILE`, rotated by size",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "explore",
			Usage: "drive forward avoiding obstacles until interrupted",
			Flags: []cli.Flag{
				configFlag,
				traceFlag,
				&cli.DurationFlag{
					Name:  flagDuration,
					Usage: "stop after `DURATION` (0 runs until interrupted)",
				},
				&cli.BoolFlag{
					Name:  flagWatch,
					Usage: "reload the navigation config when the file changes",
				},
			},
			Action: ExploreAction,
		},
		{
			Name:  "goal",
			Usage: "drive to a goal point",
			Flags: []cli.Flag{
				configFlag,
				traceFlag,
				&cli.Float64Flag{Name: flagX, Usage: "goal x in meters", Required: true},
				&cli.Float64Flag{Name: flagY, Usage: "goal y in meters", Required: true},
				&cli.StringFlag{Name: flagFrame, Usage: "frame the goal is given in", Value: "world"},
				&cli.BoolFlag{
					Name:  flagReactive,
					Usage: "steer toward the goal with the gap search instead of dispatching it to the executor",
				},
			},
			Action: GoalAction,
		},
		{
			Name:  "rotate",
			Usage: "rotate in place",
			Flags: []cli.Flag{
				configFlag,
				traceFlag,
				&cli.Float64Flag{Name: flagYawDegs, Usage: "absolute heading to rotate to"},
				&cli.BoolFlag{Name: flagFull, Usage: "make one full turn"},
			},
			Action: RotateAction,
		},
		{
			Name:   "validate",
			Usage:  "check a config file and print the components it needs",
			Flags:  []cli.Flag{configFlag},
			Action: ValidateAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the navigation attributes",
			Action: SchemaAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
