package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// envPrefix namespaces the environment variables bound to flags, so
// --record-dir can also be set as ROBOSHEN_RECORD_DIR.
const envPrefix = "ROBOSHEN"

// userEnvFile is read from the home directory after ./.env.
const userEnvFile = ".roboshen.env"

var rootCmd = &cobra.Command{
	Use:           "roboshen",
	Short:         "RoboShen - realtime voice assistant",
	Version:       GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `RoboShen streams your microphone to a realtime multimodal model, plays
its spoken replies and renders the conversation in the terminal.

The model can call tools to answer questions with grounded text, write code
or generate images; results appear in the transcript.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
	},
}

func init() {
	cobra.OnInitialize(initViper)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initViper() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadEnvFiles loads ./.env and then ~/.roboshen.env. Variables already set
// in the environment win, and missing files are ignored.
func loadEnvFiles() {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, userEnvFile))
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			logger.Debug("Loaded environment file", "path", p)
		}
	}
}

// setupVersion configures the version display
func setupVersion() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
}

func Execute() {
	loadEnvFiles()
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
