package app

import (
	"flag"
	"io/ioutil"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
)

type Options struct {
	DocumentPath      string
	DefaultConfigPath string

	LogLevel string
	DryRun   bool
}

// ParseOptions reads the command line: flags, then the install document
// and the default system configuration as positional arguments.
func ParseOptions(args []string) (Options, error) {
	var opts Options

	flagSet := flag.NewFlagSet("grub-installer-args", flag.ContinueOnError)
	flagSet.SetOutput(ioutil.Discard)
	flagSet.StringVar(&opts.LogLevel, "logLevel", "INFO", "Log level (DEBUG, INFO, WARN, ERROR, NONE)")
	flagSet.BoolVar(&opts.DryRun, "dryRun", false, "Print the generated menu instead of activating it")

	err := flagSet.Parse(args[1:])
	if err != nil {
		return opts, bosherr.WrapError(err, "Parsing flags")
	}

	positional := flagSet.Args()
	if len(positional) != 2 {
		return opts, bosherr.Errorf("Expected an install document and a default configuration, got %d arguments", len(positional))
	}

	opts.DocumentPath = positional[0]
	opts.DefaultConfigPath = positional[1]

	return opts, nil
}
