package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/craftbyte/craftchat/internal/ui"
	"github.com/craftbyte/craftchat/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "craftchat",
	Short:   "Group text and voice chat over WebRTC, from the terminal",
	Long: `CraftChat is a command-line group chat client with full-mesh WebRTC voice.
Rooms are created and joined through short invite codes; text goes through a
lightweight relay while voice flows directly between participants.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
