package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "locker",
	Short: "Face-recognition parcel locker controller",
	Long: `Locker drives a bank of parcel doors over MQTT. A deposit (SEND)
recognizes or enrolls the person in front of the camera and opens a free
door for them; a pickup (GET) recognizes them again, opens their door and
forgets them. State is kept in Redis.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or text")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
