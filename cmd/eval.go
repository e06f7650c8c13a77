package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fuzzyscore/logging"
	"fuzzyscore/pipeline"
	"fuzzyscore/scoring"
)

var evalCmd = &cobra.Command{
	Use:   "eval FILE",
	Short: "Score a .xlsx or .csv survey file and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if enc, _ := cmd.Flags().GetString("encoding"); enc != "" {
			cfg.Uploads.Encoding = enc
		}
		if locale, _ := cmd.Flags().GetString("locale"); locale != "" {
			cfg.Labels.Locale = locale
		}
		if cmd.Flags().Changed("skip-invalid") {
			cfg.Uploads.SkipInvalidRows, _ = cmd.Flags().GetBool("skip-invalid")
		}
		cfg.Uploads.Dir = ""
		cfg.Log.File = ""

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync()

		svc, err := scoring.New(cfg, nil, nil, nil, logger)
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, extraction, err := svc.ScoreUpload(cmd.Context(), filepath.Base(args[0]), data)
		if err != nil {
			logger.Debug("evaluation failed", zap.String("file", args[0]), zap.Error(err))
			return err
		}

		out := struct {
			Average float64             `json:"average"`
			Rounded string              `json:"rounded"`
			Score   int                 `json:"score"`
			Label   string              `json:"label"`
			Count   int                 `json:"count"`
			Skipped []pipeline.RowIssue `json:"skipped,omitempty"`
		}{
			Average: res.Average,
			Rounded: fmt.Sprintf("%.2f", res.Average),
			Score:   res.Score,
			Label:   res.Label,
			Count:   res.Count,
			Skipped: extraction.Issues,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	evalCmd.Flags().String("encoding", "", "Character set of CSV files (utf-8, gbk, gb18030, latin1, windows-1252)")
	evalCmd.Flags().String("locale", "", "Label language (en, id)")
	evalCmd.Flags().Bool("skip-invalid", false, "Skip rows that fail validation instead of rejecting the file")
}
