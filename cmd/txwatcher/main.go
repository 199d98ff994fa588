package main

import (
	"os"

	"github.com/learnchain/txwatcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
