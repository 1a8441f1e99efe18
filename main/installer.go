package main

import (
	"fmt"
	"os"

	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"

	"github.com/nixfoundry/grub-installer/app"
)

const mainLogTag = "main"

func main() {
	opts, err := app.ParseOptions(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parsing arguments: %s\n", err.Error())
		os.Exit(1)
	}

	logLevel, err := boshlog.Levelify(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parsing arguments: %s\n", err.Error())
		os.Exit(1)
	}

	logger := boshlog.NewLogger(logLevel)
	defer logger.HandlePanic("Main")

	logger.Debug(mainLogTag, "Starting the boot loader installer")

	fs := boshsys.NewOsFileSystem(logger)
	runner := boshsys.NewExecCmdRunner(logger)

	cli := app.New(logger, fs, runner, os.Stdout)

	err = cli.Setup(opts)
	if err != nil {
		logger.Error(mainLogTag, "App setup %s", err.Error())
		os.Exit(1)
	}

	err = cli.Run()
	if err != nil {
		logger.Error(mainLogTag, "App run %s", err.Error())
		os.Exit(1)
	}
}
