package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stroyassist/normax/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "normaxd",
		Short:   "Normax daemon - hybrid retrieval engine for normative documents",
		Long:    "Normax daemon indexes construction codes (СП, СНиП, ГОСТ) and serves hybrid semantic and keyword search with a consultation API",
		Version: version,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
