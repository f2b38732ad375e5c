package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/stitchwork/stitch/cli/render"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single capture without executing sinks.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a capture file (read-only)",
		Subcommands: []*cli.Command{
			inspectCaptureCommand(),
		},
	}
}

func inspectCaptureCommand() *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Decode a capture file and list its frames",
		ArgsUsage: "<capture-file>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectCaptureAction,
	}
}

func inspectCaptureAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("capture file required", 1)
	}
	input := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	in, closeInput, err := openInput(input)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = closeInput() }()

	capt, err := decodeCapture(in)
	if err != nil {
		return cli.Exit(fmt.Sprintf("decode failed: %v", err), 1)
	}

	rep := buildInspectReport(input, capt)

	if c.Bool("tui") {
		return r.RenderTUI("inspect_capture", rep)
	}

	return r.Render(rep)
}
