// Command carectl is the terminal client for the clinic portals.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hongminglow/carepoint/internal/cli"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli.SetVersion(version)
	code := cli.Execute(ctx, cli.Env{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}, os.Args[1:])
	stop()
	os.Exit(code)
}
