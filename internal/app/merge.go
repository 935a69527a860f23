package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spectriclabs/ecms-sync/internal/config"
	"github.com/spectriclabs/ecms-sync/internal/confirm"
	"github.com/spectriclabs/ecms-sync/internal/dataset"
	"github.com/spectriclabs/ecms-sync/internal/datasource"
	"github.com/spectriclabs/ecms-sync/internal/synchronize"
	"go.uber.org/zap"
)

// ParseAppend reads the --append flag: "auto" leaves the choice to the
// data types of the inputs.
func ParseAppend(s string) (*bool, error) {
	if strings.EqualFold(s, "auto") || s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("append %q: want auto, true or false", s)
	}
	return synchronize.Bool(b), nil
}

// Merge synchronizes the dataset files at paths and writes the combined
// dataset to out as JSON.
func Merge(paths []string, opts synchronize.Options, out io.Writer) error {
	if len(paths) == 0 {
		return fmt.Errorf("merge: no dataset files given")
	}
	datasets, err := datasource.LoadFiles(paths)
	if err != nil {
		return err
	}
	if opts.Logger != nil {
		opts.Logger.Info("Merging datasets", zap.Strings("files", paths), zap.Stringer("t_zero", opts.TimeZero))
	}
	combined, err := synchronize.Synchronize(dataset.Holders(datasets...), opts)
	if err != nil {
		return err
	}
	return dataset.Encode(out, combined)
}

// Options turns merge flags into synchronize options, asking ask when the
// inputs need a decision.
func (f MergeFlags) Options(ask confirm.Func, logger *zap.Logger) (synchronize.Options, error) {
	cfg := config.Configuration{
		Timezone:      f.Timezone,
		MissingTstamp: f.MissingTstamp,
		CutBuffer:     f.CutBuffer,
	}
	opts, err := cfg.SyncDefaults()
	if err != nil {
		return opts, err
	}
	if opts.TimeZero, err = synchronize.ParseTimeZero(f.TimeZero); err != nil {
		return opts, err
	}
	if opts.Append, err = ParseAppend(f.Append); err != nil {
		return opts, err
	}
	opts.Cut = f.Cut
	opts.CutBuffer = synchronize.Float(f.CutBuffer)
	if f.Override {
		opts.Override = synchronize.Bool(true)
	}
	opts.Confirm = ask
	opts.Logger = logger
	return opts, nil
}
