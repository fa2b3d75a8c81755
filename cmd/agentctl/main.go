package main

import "os"

func main() {
	if err := newRootCmd(openRuntime).Execute(); err != nil {
		os.Exit(1)
	}
}
