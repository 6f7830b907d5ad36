package main

import (
	"fmt"
	"os"

	"github.com/orderline-app/orderline/apps/cli/root"
)

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
