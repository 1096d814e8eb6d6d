package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxshop/merchantd/config"
	"github.com/voxshop/merchantd/internal/app"
	"github.com/voxshop/merchantd/internal/merchantapi"
	"github.com/voxshop/merchantd/internal/webserver"
	"golang.org/x/sync/errgroup"
)

var (
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	confFile = flag.String("c", "/etc/merchantd.yml", "config file")
	initDb   = flag.Bool("initdb", false, "drop and recreate database tables")
)

var (
	BuildVersion string
	ReleaseDate  string
)

func printVersion() {
	fmt.Printf("merchantd %s (%s)\n", BuildVersion, ReleaseDate)
}

func main() {
	flag.Parse()
	if *h {
		flag.Usage()
		os.Exit(0)
	}
	if *showVer {
		printVersion()
		os.Exit(0)
	}

	cfg := config.LoadConfig(*confFile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initDb {
		application.InitDb()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws := webserver.New(cfg.Web)
	merchantapi.Register(ws, application.API())

	application.StartBackgroundJobs(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ws.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
