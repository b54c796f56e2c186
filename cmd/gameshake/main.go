package main

import (
	"os"

	gameshakecmd "github.com/gameshake/gameshake/pkg/gameshake/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := gameshakecmd.NewRootCommand(gameshakecmd.DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
