package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/manifest"
	"github.com/chazu/jiki/server"
)

func cmdServe(args []string) int {
	fs, cf := newFlagSet("serve", "[options]")
	addr := fs.String("addr", ":4567", "Listen address")
	cache := fs.String("cache", "", "SQLite result cache path (\":memory:\" for process-local; empty disables)")
	runners := fs.Int("runners", 0, "Concurrent interpreter runs (default GOMAXPROCS)")
	ttl := fs.Duration("program-ttl", 30*time.Minute, "Drop stored programs unused for this long")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cf.configureLogging()

	opts := []server.ServerOption{server.WithProgramTTL(*ttl, *ttl/6)}
	if *runners > 0 {
		opts = append(opts, server.WithRunners(*runners))
	}
	if *cache != "" {
		opts = append(opts, server.WithResultCache(*cache))
	}

	// A manifest in the working directory sets the default policy and the
	// externals every run sees.
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if m != nil {
		x, err := m.Bridge()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		opts = append(opts, server.WithPolicy(m.Policy), server.WithExternals(x))
	}

	srv, err := server.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer srv.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(*addr) }()

	select {
	case err := <-errc:
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		return 1
	case <-sigc:
		return 0
	}
}

func cmdLSP(args []string) int {
	fs, cf := newFlagSet("lsp", "[options]")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	// stdout carries the protocol; commonlog writes to stderr.
	cf.configureLogging()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var mod lang.Module
	if *cf.dialect != "" {
		if mod, err = lang.Lookup(*cf.dialect); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}

	if err := server.NewLSP(mod, m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
		return 1
	}
	return 0
}
