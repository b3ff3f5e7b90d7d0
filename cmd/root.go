package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "churchstreamguard",
	Short: "Live stream session controller for a church venue",
	Long: `ChurchStreamGuard watches over the Sunday broadcast: it starts and
stops the OBS stream on schedule or on console triggers, powers the PTZ
camera, recalls presets, and restarts a stream that drops mid-service.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	_ = rootCmd.MarkPersistentFlagRequired("config")
}
