package main

import (
	"context"
	"log"
	"os"

	"github.com/todosutiles/kitsync/internal/buildinfo"
	"github.com/todosutiles/kitsync/internal/client/cli"
	"github.com/todosutiles/kitsync/internal/client/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
