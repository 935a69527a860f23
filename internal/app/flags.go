package app

import (
	flag "github.com/spf13/pflag"
)

// ServeFlags are the flags of the serve command.
type ServeFlags struct {
	ConfigFile string
	Debug      bool
}

// SetupServeFlags parses the minimal set of serve flags.
//
// * config - location of the configuration file
//            (default: ./ecsync.yml)
// * debug - whether or not to enable debug logging
//           (default: false)
func SetupServeFlags(args []string) (ServeFlags, error) {
	f := ServeFlags{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVarP(&f.ConfigFile, "config", "c", "./ecsync.yml", "Location of the ecsync configuration file")
	fs.BoolVarP(&f.Debug, "debug", "d", false, "Whether or not to enable debug logging")
	err := fs.Parse(args)
	return f, err
}

// MergeFlags are the flags of the merge command.
type MergeFlags struct {
	Output        string
	TimeZero      string
	Cut           bool
	CutBuffer     float64
	Append        string
	Override      bool
	Timezone      string
	MissingTstamp string
	Debug         bool
	Files         []string
}

func SetupMergeFlags(args []string) (MergeFlags, error) {
	f := MergeFlags{}
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	fs.StringVarP(&f.Output, "output", "o", "-", "Where to write the combined dataset (- for stdout)")
	fs.StringVarP(&f.TimeZero, "t-zero", "t", "start", "t=0 of the result: start, first, last, finish or an epoch time")
	fs.BoolVar(&f.Cut, "cut", false, "Keep only data within the cut buffer of the overlap")
	fs.Float64Var(&f.CutBuffer, "cut-buffer", 60, "Margin around the overlap when cutting, in seconds")
	fs.StringVarP(&f.Append, "append", "a", "auto", "Append columns of the same name: auto, true or false")
	fs.BoolVar(&f.Override, "override", false, "Don't ask before combining datasets that don't overlap")
	fs.StringVar(&f.Timezone, "timezone", "local", "Time zone of the combined timestamp")
	fs.StringVar(&f.MissingTstamp, "missing-tstamp", "utc", "Datasets without tstamp: utc, local or error")
	fs.BoolVarP(&f.Debug, "debug", "d", false, "Whether or not to enable debug logging")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	f.Files = fs.Args()
	return f, nil
}
