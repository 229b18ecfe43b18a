package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/klauern/assetsync/internal/model"
)

// userAgent is sent with every manifest and artifact request.
func userAgent() string {
	return "assetsync/" + Version
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "assetsync version %s\n", Version)
	for _, line := range [][2]string{
		{"commit", Commit},
		{"built", BuildDate},
		{"go", runtime.Version()},
		{"platform", model.HostPlatform().String()},
	} {
		fmt.Fprintf(w, "  %s: %s\n", line[0], line[1])
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Display version and build information",
		Action: func(_ context.Context, cmd *cli.Command) error {
			printVersion(cmd.Root().Writer)
			return nil
		},
	}
}
