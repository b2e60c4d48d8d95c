// Path: cmd/toploras/main.go
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.gitVersion=...".
var (
	gitVersion = "v0.0.0-dev"
	gitCommit  = "unknown"
	buildDate  = "unknown"
)

const errExitCode = 1

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(errExitCode)
	}
}

// NewRootCmd builds the CLI. Running it without a subcommand fetches.
func NewRootCmd() *cobra.Command {
	cmd := newFetchCmd()
	cmd.Use = "toploras"
	cmd.Short = "Fetch the top LoRA models from ModelScope"
	cmd.Version = gitVersion
	cmd.PersistentFlags().String("config", "", "path to a config file (default ./configs/config.yaml)")

	cmd.AddCommand(newGenerateCmd(), newVersionCmd())
	return cmd
}

type versionInfo struct {
	GitVersion string
	GitCommit  string
	BuildDate  string
	GoVersion  string
	Platform   string
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(versionInfo{
				GitVersion: gitVersion,
				GitCommit:  gitCommit,
				BuildDate:  buildDate,
				GoVersion:  runtime.Version(),
				Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
			})
		},
	}
}
