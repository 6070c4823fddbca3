// Command accesssync syncs the door access database with the members that have lab access
// in MakerAdmin. Every kind of change is confirmed by the operator before it is applied.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/makerspace/makeradmin/internal/accesssync"
	"github.com/makerspace/makeradmin/internal/lib/sl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// run parses args, opens the access database and syncs until the operator stops.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("accesssync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		whatFlag    = fs.String("what", strings.Join(accesssync.AllWhat, ","), "what to sync, comma separated: "+strings.Join(accesssync.AllWhat, ","))
		baseURL     = fs.String("maker-admin-base-url", "https://api.makerspace.se", "MakerAdmin base url")
		membersFile = fs.String("members-filename", "", "read members from this file instead of fetching them")
		token       = fs.String("token", "", "MakerAdmin access token, asks for credentials when empty")
		dbPath      = fs.String("db", "access.db", "path to the access database")
		customerID  = fs.Int64("customer-id", 16, "customer the users belong to")
		authorityID = fs.Int64("authority-id", 23, "authority given to added users")
		debug       = fs.Bool("debug", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}

	what, err := accesssync.ParseWhat(*whatFlag)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return errUsage
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	store, err := accesssync.OpenStore(*dbPath)
	if err != nil {
		return fmt.Errorf("open access database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close access database", sl.Err(err))
		}
	}()

	ui := accesssync.NewTui(stdin, stdout)
	client := accesssync.NewMakerAdminClient(*baseURL, *token, *membersFile, ui)
	syncer := accesssync.NewSyncer(client, store, ui, accesssync.Config{
		CustomerID:  *customerID,
		AuthorityID: *authorityID,
	}, logger)

	for {
		err := syncer.Run(ctx, what)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		case accesssync.IsUnauthorized(err):
			ui.Info("MakerAdmin rejected the token, you will be asked to log in again")
		default:
			logger.Error("sync failed", sl.Err(err))
			ui.Info("sync failed: " + err.Error())
		}

		again, err := ui.Confirm("Run again?")
		if err != nil || !again || ctx.Err() != nil {
			return nil
		}
	}
}
