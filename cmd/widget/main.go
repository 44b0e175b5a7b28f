// Command widget is a terminal chat widget for the chatbot session API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &widgetFlags{}

	rootCmd := &cobra.Command{
		Use:           "widget",
		Short:         "Terminal chat widget for the chatbot service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env file is normal; the environment still applies.
			_ = godotenv.Load()
		},
	}
	flags.register(rootCmd)

	rootCmd.AddCommand(newChatCmd(flags), newPersonasCmd(flags))
	return rootCmd
}
