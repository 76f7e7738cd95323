package main

import (
	"github.com/soniakeys/exit"
)

func main() {
	defer exit.Handler()

	if err := rootCmd.Execute(); err != nil {
		exit.Log(err)
	}
}
