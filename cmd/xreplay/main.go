package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/xuperchain/xreplay/cmd/xreplay/cmd"
)

func main() {
	// 收到退出信号时取消正在进行的回放
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("xreplay failed.err:%v", err)
	}
}
