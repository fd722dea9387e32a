// Package cli wires the sync core into a small command-line client:
// local database, connectivity monitor, gateway client and the sync
// service, plus a handful of commands to exercise them.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/todosutiles/kitsync/internal/client/cache"
	"github.com/todosutiles/kitsync/internal/client/config"
	"github.com/todosutiles/kitsync/internal/client/gateway"
	"github.com/todosutiles/kitsync/internal/client/localstore"
	"github.com/todosutiles/kitsync/internal/client/models"
	"github.com/todosutiles/kitsync/internal/client/netmon"
	"github.com/todosutiles/kitsync/internal/client/queue"
	syncsvc "github.com/todosutiles/kitsync/internal/client/sync"
	"github.com/todosutiles/kitsync/internal/logging"

	_ "modernc.org/sqlite"
)

type App struct {
	config  *config.Config
	monitor *netmon.Monitor
	service *syncsvc.Service
	log     logging.Logger
	out     io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	db, err := localstore.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local database: %w", err)
	}

	store := localstore.New(db, logger)
	c := cache.New(store, logger)
	q := queue.New(store, c, logger)

	gw := gateway.NewHTTPGateway(cfg.ServerEndpointAddr, logger)

	pingURL := cfg.PingURL
	if pingURL == "" {
		pingURL = gw.PingURL()
	}
	monitor := netmon.New(pingURL, cfg.OnlineCheckInterval, logger)

	service := syncsvc.NewService(gw, q, c, monitor, logger)

	return &App{
		config:  cfg,
		monitor: monitor,
		service: service,
		log:     logger,
		out:     os.Stdout,
	}, nil
}

// Run starts the background flows and dispatches a single command.
func (a *App) Run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.monitor.Run(ctx)
	a.service.Start(ctx)
	defer a.service.Close()

	cmd, rest := command(args)
	switch cmd {
	case "list":
		return a.list(rest)
	case "register":
		return a.register(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "sync":
		return a.sync(ctx)
	case "watch":
		return a.watch(ctx)
	default:
		return fmt.Errorf("unknown command %q (expected list, register, edit, sync or watch)", cmd)
	}
}

func (a *App) list(args []string) error {
	var records []models.Record
	if len(args) >= 2 {
		records = a.service.FilterRange(args[0], args[1])
	} else {
		records = a.service.Records()
	}

	for _, r := range records {
		delivered := " "
		if r.Delivered {
			delivered = "x"
		}
		fmt.Fprintf(a.out, "[%s] %-25s %3d  %-20s %-10s %s\n",
			delivered, r.Name, r.Age, r.School, r.Sector, r.RegisteredAt)
	}
	fmt.Fprintf(a.out, "%d record(s)\n", len(records))
	return nil
}

func (a *App) register(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: register <name> <age> <school> <sector> [gender]")
	}

	age, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid age %q: %w", args[1], err)
	}

	record := models.Record{
		Name:   args[0],
		Age:    age,
		School: args[2],
		Sector: args[3],
	}
	if len(args) > 4 {
		record.Gender = args[4]
	}

	if err := a.service.Register(ctx, record); err != nil {
		return err
	}

	if a.monitor.Online() {
		fmt.Fprintln(a.out, "registered")
	} else {
		fmt.Fprintln(a.out, "registered (offline, queued for sync)")
	}
	return nil
}

func (a *App) edit(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: edit <id> <field> <value>")
	}

	if err := a.service.Edit(ctx, args[0], args[1], parseValue(args[1], args[2])); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "saved")
	return nil
}

func (a *App) sync(ctx context.Context) error {
	if err := a.service.ReconcileNow(ctx); err != nil {
		return err
	}
	if err := a.service.ReplayPendingEdits(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "synchronized")
	return nil
}

func (a *App) watch(ctx context.Context) error {
	unsubscribe := a.service.Subscribe(func(records []models.Record) {
		fmt.Fprintf(a.out, "snapshot: %d record(s)\n", len(records))
	})
	defer unsubscribe()

	<-ctx.Done()
	return nil
}

// parseValue coerces the command-line value into the type the field
// expects.
func parseValue(field, raw string) any {
	switch field {
	case "age":
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case "delivered":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

// command extracts the subcommand and its positional arguments, skipping
// the flags handled by the config layer.
func command(args []string) (string, []string) {
	flagsWithValue := map[string]struct{}{
		"-a": {}, "-p": {}, "-i": {}, "-d": {}, "-c": {}, "-config": {},
	}

	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			if _, ok := flagsWithValue[strings.SplitN(arg, "=", 2)[0]]; ok && !strings.Contains(arg, "=") {
				i++ // skip the flag's value
			}
			continue
		}
		positional = append(positional, arg)
	}

	if len(positional) == 0 {
		return "list", nil
	}
	return positional[0], positional[1:]
}
