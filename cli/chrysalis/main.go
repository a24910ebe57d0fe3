package main

import (
	"os"

	chrysaliscmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis"
)

func main() {
	cmd := chrysaliscmder.NewChrysalisCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
