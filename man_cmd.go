package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		manPage, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return fmt.Errorf("unable to generate man page: %w", err)
		}

		manPage = manPage.WithSection("Files", "Configuration is read from echodrill.yml in the user config directory,\n"+
			"$XDG_CONFIG_HOME/echodrill or $ECHODRILL_CONFIG_HOME.")
		manPage = manPage.WithSection("Environment", "OPENAI_API_KEY enables clip generation with OpenAI.\n"+
			"ECHODRILL_DEBUG=1 turns on debug logging.\n"+
			"ECHODRILL_LOG_FILE overrides the log file location.")
		fmt.Println(manPage.Build(roff.NewDocument()))
		return nil
	},
}
