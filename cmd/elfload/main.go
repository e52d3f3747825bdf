package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	elfcontext "github.com/grafana/elfload/pkg/context"
	"github.com/grafana/elfload/pkg/elf"
	"github.com/grafana/elfload/pkg/loader"
)

var cfg struct {
	verbose bool
	info    struct {
		file string
	}
	run struct {
		file            string
		loader          loader.Config
		pause           bool
		metricsTextfile string
	}
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Decode ELF64 executables and run them from a fixed base address.").UsageWriter(os.Stdout)
	app.Version(version.Print("elfload"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)

	infoCmd := app.Command("info", "Print the headers and segments of an ELF file.")
	infoCmd.Arg("file", "ELF file path").Required().ExistingFileVar(&cfg.info.file)

	cfg.run.loader = loader.DefaultConfig()
	runCmd := app.Command("run", "Load an ELF file into this process and jump to its entry point.")
	runCmd.Arg("file", "ELF file path").Required().ExistingFileVar(&cfg.run.file)
	runCmd.Flag("base", "Address added to every segment and to the entry point.").Default("0x400000").SetValue(&cfg.run.loader.Base)
	runCmd.Flag("page-size", "Override the system page size.").Default("0").IntVar(&cfg.run.loader.PageSize)
	runCmd.Flag("verify", "Check copied segment bytes before applying permissions.").Default("false").BoolVar(&cfg.run.loader.Verify)
	runCmd.Flag("pause", "Wait for Enter before jumping.").Default("false").BoolVar(&cfg.run.pause)
	runCmd.Flag("metrics.textfile", "Write loader metrics to this file before jumping.").StringVar(&cfg.run.metricsTextfile)

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	ctx := elfcontext.WithLogger(context.Background(), logger)
	ctx = elfcontext.WithRegistry(ctx, prometheus.NewRegistry())
	ctx = elfcontext.WithOutput(ctx, os.Stdout)

	switch parsedCmd {
	case infoCmd.FullCommand():
		os.Exit(checkError(info(ctx, cfg.info.file)))
	case runCmd.FullCommand():
		os.Exit(checkError(run(ctx, cfg.run.file, runParams{
			loader:          cfg.run.loader,
			pause:           cfg.run.pause,
			metricsTextfile: cfg.run.metricsTextfile,
			stdin:           os.Stdin,
		})))
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	var de *elf.DecodeError
	if errors.As(err, &de) {
		fmt.Fprintln(consoleOutput, color.RedString("Error:"), "decoding failed")
		_ = de.WriteTrace(consoleOutput)
		return 1
	}
	fmt.Fprintln(consoleOutput, color.RedString("Error:"), err)
	return 1
}
