package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var flags stageFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the spectrum files of the selected catalog rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStage(cmd, &flags, func(runCtx context.Context, env *stageEnv) error {
				rows, err := env.selectRows(runCtx, stageFetch, flags.retryFailed)
				if err != nil {
					return err
				}
				summary, err := env.runFetch(runCtx, rows)
				if err != nil {
					return err
				}
				if err := runCtx.Err(); err != nil {
					return err
				}
				return checkThreshold(stageFetch, summary, env.cfg.Run.FailThreshold)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newResampleCommand(ctx *commandContext) *cobra.Command {
	var flags stageFlags

	cmd := &cobra.Command{
		Use:   "resample",
		Short: "Shift fetched spectra to rest frame and interpolate them onto the master grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStage(cmd, &flags, func(runCtx context.Context, env *stageEnv) error {
				rows, err := env.selectRows(runCtx, stageResample, flags.retryFailed)
				if err != nil {
					return err
				}
				summary, err := env.runResample(runCtx, rows)
				if err != nil {
					return err
				}
				if err := runCtx.Err(); err != nil {
					return err
				}
				return checkThreshold(stageResample, summary, env.cfg.Run.FailThreshold)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newFilterCommand(ctx *commandContext) *cobra.Command {
	var discardFraction float64

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Drop grid columns left undefined by too many spectra and write the processed batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStage(cmd, nil, func(runCtx context.Context, env *stageEnv) error {
				if cmd.Flags().Changed("discard-fraction") {
					cfg := *env.cfg
					cfg.Resample.DiscardFraction = discardFraction
					if err := cfg.Validate(); err != nil {
						return err
					}
					env.cfg = &cfg
				}
				_, err := env.runFilter(runCtx)
				return err
			})
		},
	}
	cmd.Flags().Float64Var(&discardFraction, "discard-fraction", 0.1, "Largest tolerated share of undefined values per column")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags stageFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run fetch, resample and filter in sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStage(cmd, &flags, func(runCtx context.Context, env *stageEnv) error {
				rows, err := env.selectRows(runCtx, stageFetch, flags.retryFailed)
				if err != nil {
					return err
				}

				summary, err := env.runFetch(runCtx, rows)
				if err != nil {
					return err
				}
				if err := runCtx.Err(); err != nil {
					return err
				}
				if err := checkThreshold(stageFetch, summary, env.cfg.Run.FailThreshold); err != nil {
					return err
				}

				summary, err = env.runResample(runCtx, rows)
				if err != nil {
					return err
				}
				if err := runCtx.Err(); err != nil {
					return err
				}
				if err := checkThreshold(stageResample, summary, env.cfg.Run.FailThreshold); err != nil {
					return err
				}

				_, err = env.runFilter(runCtx)
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}
