// Path: cmd/toploras/generate.go
package main

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"top-loras/internal/config"
	"top-loras/internal/inference"
	"top-loras/internal/logging"
)

func newGenerateCmd() *cobra.Command {
	params := inference.DefaultParams("")
	var token string

	cmd := &cobra.Command{
		Use:          "generate <org/model>",
		Short:        "submit a generation job for a model",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Logging); err != nil {
				return err
			}
			if token == "" {
				token = os.Getenv(cfg.Upstream.TokenEnv)
			}
			params.Task = config.ResolveTask(params.Task)

			job, err := inference.NewClient(cfg.Inference).Submit(cmd.Context(), args[0], params, token)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&params.Task, "task", "text-to-image", "task to run")
	flags.StringVar(&params.Prompt, "prompt", "", "prompt")
	flags.StringVar(&params.NegativePrompt, "negative-prompt", "", "negative prompt")
	flags.StringVar(&params.Size, "size", "", "output size, e.g. 1024x1024")
	flags.IntVar(&params.Steps, "steps", params.Steps, "sampling steps")
	flags.Float64Var(&params.Guidance, "guidance", params.Guidance, "guidance scale")
	flags.Int64Var(&params.Seed, "seed", 0, "random seed")
	flags.StringVar(&params.JobID, "job-id", "", "job id (default random)")
	flags.StringVar(&token, "token", "", "API token (default from the upstream token env var)")
	return cmd
}
