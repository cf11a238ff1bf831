// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/z5labs/strata"
	"github.com/z5labs/strata/reload"
	"github.com/z5labs/strata/source"
	"github.com/z5labs/strata/source/envvars"
	"github.com/z5labs/strata/source/files"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func main() {
	err := buildCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flags struct {
	files     []string
	env       string
	envPrefix string
}

func buildCmd() *cobra.Command {
	var fs flags

	cmd := &cobra.Command{
		Use:   "confctl",
		Short: "Inspect layered configuration from files and environment variables",
	}
	cmd.PersistentFlags().StringSliceVarP(&fs.files, "file", "f", nil, "configuration file, later files override earlier ones")
	cmd.PersistentFlags().StringVar(&fs.env, "env", "", "environment to resolve sources against")
	cmd.PersistentFlags().StringVar(&fs.envPrefix, "env-prefix", "CONFCTL_", "prefix of environment variables to layer on top")

	cmd.AddCommand(
		buildGetCmd(&fs),
		buildKeysCmd(&fs),
		buildWatchCmd(&fs),
	)
	return cmd
}

// newProvider layers the declared files under the process environment
// variables, so a variable always wins over a file value.
func newProvider(fs *flags, strategies ...reload.Strategy) (*strata.Provider, error) {
	opts := []strata.Option{
		strata.LogHandler(slog.NewTextHandler(os.Stderr, nil)),
	}
	if len(fs.files) > 0 {
		opts = append(opts, strata.WithSource(
			files.New(afero.NewOsFs(), fs.files...),
			source.ForEnvironment(source.Environment(fs.env)),
		))
	}
	opts = append(opts, strata.WithSource(envvars.New(envvars.Prefix(fs.envPrefix))))
	for _, s := range strategies {
		opts = append(opts, strata.WithStrategy(s))
	}

	p := strata.New(opts...)

	err := p.Init(context.Background())
	if err != nil {
		return nil, err
	}
	return p, nil
}

func buildGetCmd(fs *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value of a single key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvider(fs)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			v, err := p.Get(args[0], strata.Any())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func buildKeysCmd(fs *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every key of the merged configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newProvider(fs)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			for _, k := range p.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func buildWatchCmd(fs *flags) *cobra.Command {
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "watch KEY",
		Short: "Print the value of a key every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logHandler := slog.NewTextHandler(os.Stderr, nil)

			strategies := []reload.Strategy{
				reload.Periodical(every, reload.LogHandler(logHandler)),
			}
			if len(fs.files) > 0 {
				strategies = append(strategies, reload.OnFileChange(fs.files, reload.LogHandler(logHandler)))
			}

			p, err := newProvider(fs, strategies...)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var last string
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}

				v, err := p.Get(args[0], strata.Any())
				if err != nil {
					continue
				}

				cur := fmt.Sprintf("%v", v)
				if cur == last {
					continue
				}
				last = cur
				fmt.Fprintln(cmd.OutOrStdout(), cur)
			}
		},
	}
	cmd.Flags().DurationVar(&every, "every", 10*time.Second, "interval between background reloads")
	return cmd
}
