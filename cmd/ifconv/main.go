package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/malphas-lang/ifconv/internal/config"
	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/gofront"
	"github.com/malphas-lang/ifconv/internal/mir"
	"github.com/malphas-lang/ifconv/internal/pipeline"
	"github.com/malphas-lang/ifconv/internal/procfile"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line args and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ifconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ifconv [options] <file.yaml|file.go>...\n")
		fmt.Fprintf(stderr, "\nConverts loop-free procedures into dataflow graphs.\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "YAML configuration file")
	trace := fs.Bool("trace", false, "log every stage to stderr")
	workers := fs.Int("workers", 0, "procedures converted concurrently (default one per CPU)")
	dotDir := fs.String("dot", "", "write Graphviz files for every procedure to `dir`")
	printIR := fs.Bool("print", false, "print the compacted IR of every procedure")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	conf := config.Default()
	if *configPath != "" {
		var err error
		if conf, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	// Flags given on the command line win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "trace":
			conf.Trace = *trace
		case "workers":
			conf.Workers = *workers
		case "dot":
			conf.DotDir = *dotDir
		case "print":
			conf.Print = *printIR
		}
	})
	conf = conf.WithLogOutput(stderr)

	formatter := diag.NewFormatter(stderr)
	module, sources, err := load(fs.Args())
	if err != nil {
		formatter.Format(diag.From(err))
		return 1
	}

	failed, exportFailed := 0, 0
	for _, o := range pipeline.ConvertModule(ctx, module, conf) {
		if o.Failed() {
			failed++
			d := diag.From(o.Err)
			if d.Span.Filename == "" && d.Span.Line == 0 {
				d.Span.Filename = sources[o.Function]
			}
			fmt.Fprintln(stdout, o)
			formatter.Format(d)
			continue
		}

		fmt.Fprintln(stdout, o)
		if conf.Print {
			fmt.Fprintln(stdout, o.Result.Compacted.PrettyPrint())
		}
		if conf.DotDir != "" {
			if err := pipeline.WriteDOT(conf.DotDir, o); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				exportFailed++
			}
		}
	}

	if failed > 0 {
		fmt.Fprintf(stderr, "%d of %d procedures failed\n", failed, len(module.Functions))
	}
	if exportFailed > 0 {
		fmt.Fprintf(stderr, "%d of %d graph exports failed\n", exportFailed, len(module.Functions)-failed)
	}
	if failed > 0 || exportFailed > 0 {
		return 1
	}
	return 0
}

// load reads every input file into one module and records which file each
// procedure came from.
func load(paths []string) (*mir.Module, map[*mir.Function]string, error) {
	module := &mir.Module{}
	sources := make(map[*mir.Function]string)
	for _, path := range paths {
		var (
			m   *mir.Module
			err error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			m, err = procfile.LoadFile(path)
		case ".go":
			m, err = gofront.LoadFile(path)
		default:
			return nil, nil, diag.Errorf(diag.StageFrontend, diag.CodeFrontendUnsupported,
				"unknown input format %q", filepath.Ext(path)).
				At(diag.Span{Filename: path}).
				WithHelp("inputs are .yaml procedure files or .go sources")
		}
		if err != nil {
			return nil, nil, err
		}
		for _, fn := range m.Functions {
			sources[fn] = path
		}
		module.Functions = append(module.Functions, m.Functions...)
	}
	return module, sources, nil
}
