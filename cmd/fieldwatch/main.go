// Package main is the fieldwatch script driver: it binds a JSON
// document as "doc", runs a watch script against it, and prints the
// resulting document.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"fieldwatch/internal/intercept"
	"fieldwatch/internal/jsondoc"
	"fieldwatch/internal/logging"
	"fieldwatch/internal/script"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// Options configures the driver. Flags take precedence over
// environment variables.
type Options struct {
	DocPath    string `env:"FIELDWATCH_DOC"`
	ScriptPath string `env:"FIELDWATCH_SCRIPT"`
	LogLevel   string `env:"FIELDWATCH_LOG_LEVEL" envDefault:"warn"`
	Pretty     bool   `env:"FIELDWATCH_PRETTY" envDefault:"true"`
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log, err := logging.New(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	raw := []byte("{}")
	if opts.DocPath != "" {
		raw, err = os.ReadFile(opts.DocPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read document: %v\n", err)
			return 1
		}
	}
	doc, err := jsondoc.New(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", opts.DocPath, err)
		return 1
	}

	reg := intercept.New(intercept.WithLogger(log))
	eng := script.NewEngine(reg, script.WithLogger(log))
	defer func() { _ = eng.Close() }()

	if err := eng.Bind("doc", doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := eng.DoFile(opts.ScriptPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.Pretty {
		fmt.Print(doc.Pretty())
	} else {
		fmt.Println(doc.String())
	}
	return 0
}

func parseOptions() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return opts, fmt.Errorf("parse environment: %w", err)
	}

	var showVersion bool
	flag.StringVar(&opts.DocPath, "doc", opts.DocPath, "Path to JSON document (default: empty object)")
	flag.StringVar(&opts.ScriptPath, "script", opts.ScriptPath, "Path to watch script (required)")
	flag.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Pretty, "pretty", opts.Pretty, "Pretty-print the resulting document")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fieldwatch - run a watch script against a JSON document\n\n")
		fmt.Fprintf(os.Stderr, "Usage: fieldwatch -script hooks.lua [-doc data.json]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nThe document is bound as \"doc\"; scripts use the watch module:\n")
		fmt.Fprintf(os.Stderr, "  watch.before_set(\"doc\", \"user.age\", function(t, f, v) ... end)\n")
		fmt.Fprintf(os.Stderr, "  watch.set(\"doc\", \"user.age\", 42)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("fieldwatch %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if opts.ScriptPath == "" {
		flag.Usage()
		return opts, fmt.Errorf("missing -script")
	}
	return opts, nil
}
