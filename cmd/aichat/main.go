package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lk2023060901/ai-chat-dashboard/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
