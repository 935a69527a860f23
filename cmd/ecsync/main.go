// Command ecsync synchronizes electrochemistry, mass spectrometry and X-ray
// datasets, either as an HTTP service or on local files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spectriclabs/ecms-sync/internal/app"
	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"go.uber.org/zap"
)

const usage = `usage:
  ecsync serve [--config ecsync.yml] [--debug]
  ecsync merge [-o out.json] [--t-zero start] [--cut] [--append auto|true|false] files...
`

func serve(args []string) error {
	flags, err := app.SetupServeFlags(args)
	if err != nil {
		return err
	}

	logger := app.SetupLogger(flags.Debug)
	defer logger.Sync()

	configuration, err := app.LoadConfig(flags.ConfigFile)
	if err != nil {
		logger.Fatal("Error loading config file", zap.String("config_file", flags.ConfigFile), zap.Error(err))
	}
	configuration.Debug = configuration.Debug || flags.Debug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return app.Serve(ctx, configuration, logger)
}

func merge(args []string) error {
	flags, err := app.SetupMergeFlags(args)
	if err != nil {
		return err
	}

	logger := app.SetupLogger(flags.Debug)
	defer logger.Sync()

	opts, err := flags.Options(confirm.Prompt(os.Stdin, os.Stderr), logger)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if flags.Output != "-" {
		f, err := os.Create(flags.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return app.Merge(flags.Files, opts, out)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(os.Args[2:])
	case "merge":
		err = merge(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ecsync:", err)
		os.Exit(1)
	}
}
