// Command agora is a CLI client for the community platform.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/and161185/agora/internal/config"
	"github.com/and161185/agora/internal/errs"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage makes main print the usage text.
var errUsage = errors.New("usage")

func usage() {
	fmt.Fprintf(os.Stderr, `agora CLI
Usage:
  agora [-api URL] [-v] <cmd> [args]

Commands:
  version
  signup     -email <email> -p <password> [-name <username>]
  login      -email <email> -p <password>        (saves token)
  logout
  whoami
  communities [-mine] [-skip N -limit N]
  community  show -id <id> | create -name <name> [-desc <text>]
             | edit -id <id> -name <name> [-desc <text>] | rm -id <id>
  join       -id <community>
  leave      -id <community>
  members    -id <community>
  role       -id <community> -user <uuid> -role member|moderator|admin
  posts      -id <community> [-skip N -limit N]
  post       create -id <community> -text <text> [-media <url> -media-type <type>]
             | edit -post <id> [-text <text>] [-media <url> (empty removes)] | rm -post <id>
  comments   -post <id> [-skip N -limit N]
  comment    add -post <id> -text <text> | rm -comment <id>
  like       -post <id> [-status]
  rooms      -id <community>
  room       create -id <community> -title <title>
  messages   -room <id> [-skip N -limit N]
  say        -room <id> (-text <text> | -image <url>)
  watch      -room <id>                          (polls until interrupted; stdin lines are sent,
                                                  "/image <url>" sends an image)
  profile    [set -name <name> -bio <text>]
`)
	os.Exit(2)
}

// main parses global flags, then dispatches the subcommand.
func main() {
	cfg := config.Load()

	api := flag.String("api", cfg.APIURL, "backend base URL")
	verbose := flag.Bool("v", cfg.Debug, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cfg.APIURL = strings.TrimRight(*api, "/")
	cfg.Debug = *verbose
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	log := newLogger(cfg.Debug)
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log, os.Stdout)
	if err != nil {
		fail(err)
	}
	a.in = os.Stdin

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = a.run(ctx, flag.Arg(0), flag.Args()[1:])
	switch {
	case errors.Is(err, errUsage):
		usage()
	case err != nil:
		fail(err)
	}
}

func newLogger(debug bool) *zap.Logger {
	if !debug {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", errs.Detail(err))
	os.Exit(1)
}
