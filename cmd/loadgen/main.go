package main

import (
	"fmt"
	"os"

	"token-auth-service/internal/tools/loadgen"
)

func main() {
	if err := loadgen.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
