package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/inferloop/esrnn/cmd/esrnn/commands"
)

func main() {
	rt := &commands.Runtime{}
	rootCmd, err := commands.NewRootCmd(rt, viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
