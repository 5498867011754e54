package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/starlight-bridge/starlight/internal/log"
	"github.com/starlight-bridge/starlight/internal/mcp"
)

// Options configure the MCP bridge to the daemon
type Options struct {
	APIURL string `long:"api-url" env:"STARLIGHT_API_URL" default:"http://127.0.0.1:9876" description:"Base URL of the daemon control API"`
	Debug  bool   `short:"d" long:"debug" description:"Enable debug logging"`
}

func main() {
	var opts Options
	p := flags.NewParser(&opts, flags.Default)
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol
	log.SetWriter(os.Stderr)
	if opts.Debug {
		log.SetLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.NewClient(opts.APIURL), "v1.0.0")
	log.Info("[MCP] serving over stdio", "api", opts.APIURL)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("[MCP] server stopped", "error", err)
		os.Exit(1)
	}
}
