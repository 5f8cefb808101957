package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coldog/extbld/pkg/build"
	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/util"
)

var version = "dev"

type flags struct {
	mode       string
	browser    string
	watch      bool
	configPath string
	root       string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "extbld",
		Short: "Build a browser extension into dist/<browser>",
		Long: `extbld compiles the background worker, pages and content scripts of a
browser extension, splits shared code into chunks and writes the bundles,
page HTML and manifest.json.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.mode, "mode", string(config.Development), "Build mode (development or production)")
	cmd.Flags().StringVar(&f.browser, "browser", string(config.Chrome), "Target browser (chrome or firefox)")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "Rebuild when sources change")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file (default <root>/"+config.DefaultFile+" when present)")
	cmd.Flags().StringVar(&f.root, "root", ".", "Project root")
	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	var opts []config.Option
	if cmd.Flags().Changed("mode") {
		opts = append(opts, config.WithMode(config.Mode(f.mode)))
	}
	if cmd.Flags().Changed("browser") {
		opts = append(opts, config.WithBrowser(config.Browser(f.browser)))
	}
	opts = append(opts, config.WithWatch(f.watch))

	cfg, err := config.Load(f.root, f.configPath, opts...)
	if err != nil {
		return err
	}
	b, err := build.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Watch {
		res, err := b.Build(ctx)
		printResult(cmd, cfg, res)
		return err
	}
	return b.Watch(ctx, build.DefaultDebounce, func(res *build.Result, err error) {
		printResult(cmd, cfg, res)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	})
}

func printResult(cmd *cobra.Command, cfg config.Config, res *build.Result) {
	if res == nil {
		return
	}
	label, err := filepath.Rel(cfg.Root, cfg.OutDir())
	if err != nil {
		label = cfg.OutDir()
	}
	tree := util.NewFileTree(filepath.ToSlash(label))
	for _, p := range res.Assets.Paths() {
		data, _ := res.Assets.Get(p)
		tree.Insert(p, len(data))
	}
	fmt.Fprint(cmd.OutOrStdout(), tree.Render())
}
