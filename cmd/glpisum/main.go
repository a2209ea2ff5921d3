package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:          "glpisum",
		Short:        "Summarize new GLPI tickets into PDF reports on object storage",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.json)")

	root.AddCommand(
		serveCMD(&cfgPath),
		processCMD(&cfgPath),
		ticketsCMD(&cfgPath),
		testLLMCMD(&cfgPath),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
