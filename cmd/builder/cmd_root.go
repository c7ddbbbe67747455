package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-builder/framework/app"
	"github.com/km-arc/go-builder/framework/config"
)

// flags shared by every subcommand.
type flags struct {
	files    []string
	envFiles []string
	fresh    bool
	clone    bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:     appName + " [command]",
		Short:   "Resolve declarative instructions into values",
		Long:    "Resolve declarative instructions into values.\n\nManifests come from BUILDER_MANIFESTS and every -f flag, merged in that order.",
		Version: app.Version,
	}
	root.PersistentFlags().StringArrayVarP(&f.files, "file", "f", nil,
		"instruction manifest (repeatable; later files win)")
	root.PersistentFlags().StringArrayVar(&f.envFiles, "env", nil,
		"env file to load (repeatable; default: .env)")
	root.PersistentFlags().BoolVar(&f.fresh, "new", false,
		"build a fresh value on every resolution (overrides BUILDER_NEW)")
	root.PersistentFlags().BoolVar(&f.clone, "clone", false,
		"hand out copies of cached values (overrides BUILDER_CLONE)")

	root.SilenceErrors = true
	root.SilenceUsage = true

	root.AddCommand(newMakeCmd(f), newHasCmd(f), newListCmd(f))
	return root
}

// load boots an Application from the env files, the manifests and the
// lifecycle flags the user actually set.
func load(ctx context.Context, cmd *cobra.Command, f *flags) (*app.Application, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load(f.envFiles...)
	// Keep stdout clean for piping: only warnings unless LOG_LEVEL says otherwise.
	cfg.Log.Level = config.Get("LOG_LEVEL", "warn")
	cfg.Builder.Manifests = append(cfg.Builder.Manifests, f.files...)
	if cmd.Flags().Changed("new") {
		cfg.Builder.New = f.fresh
	}
	if cmd.Flags().Changed("clone") {
		cfg.Builder.Clone = f.clone
	}

	a, err := app.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Boot(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
