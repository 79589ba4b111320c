package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jp3tty/FraudDocAI/internal/config"
	"github.com/jp3tty/FraudDocAI/internal/core/pattern"
)

func patternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Print the active fraud pattern rule pack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			analyzer, err := pattern.NewDefault(cfg.PatternLargeAmountThreshold)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]any{
				"large_amount_threshold": analyzer.LargeAmountThreshold(),
				"rules":                  analyzer.Rules(),
			})
		},
	}
}
