package cmd

import (
	"github.com/spf13/cobra"

	"fuzzyscore/config"
)

var rootCmd = &cobra.Command{
	Use:   "fuzzyscore",
	Short: "Fuzzy satisfaction scoring for survey uploads",
	Long: "fuzzyscore scores survey answers with a Mamdani fuzzy inference engine, " +
		"averages them per upload and labels the result.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML configuration file (built-in defaults when missing)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(checkCmd)
}

// loadConfig reads --config, falling back to the defaults when the file does
// not exist.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
