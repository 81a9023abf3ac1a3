// file: cmd/litelens/main.go

package main

import (
	"LiteLens/internal/cli"
	"context"
	"fmt"
	"os"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
