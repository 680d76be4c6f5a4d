package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tessnet-demo/lib/logger"
	"tessnet-demo/modules/aggregate"
	"tessnet-demo/modules/devnet"
)

func main() {
	args, err := ParseArgs()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	log := logger.Slog{
		Inner: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})).With("service", "devnet"),
	}

	conf := devnet.NewConfig(args.dataDir)
	node := devnet.New(conf, log)

	if err := conf.Init(); err != nil {
		fmt.Println("failed to init config:", err)
		os.Exit(1)
	}
	if args.listenAddr != "" {
		if err := conf.SetListenAddr(args.listenAddr); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := aggregate.New([]aggregate.Plugin{node})
	if err := a.RunWithContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
