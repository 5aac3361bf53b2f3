package main

import (
	"os"

	"github.com/sandeepkv93/qr-attendance-service/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
