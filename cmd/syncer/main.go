package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"erp2mirror/ioc"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	build := func(ctx context.Context, path ioc.ConfigPath) (syncService, func(), error) {
		svc, cleanup, err := InitSyncer(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return svc, cleanup, nil
	}
	if err := newRootCommand(build).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}
