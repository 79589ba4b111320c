package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jp3tty/FraudDocAI/internal/config"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/repository/postgres"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show a stored document's status and verdict",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
	cmd.Flags().Bool("full", false, "Print the full record instead of the status only")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	repo := postgres.NewDocumentRepository(db)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	if full, _ := cmd.Flags().GetBool("full"); !full {
		status, err := repo.GetStatus(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], status)
		return nil
	}

	doc, err := repo.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	doc.ExtractedText = nil
	return printJSON(cmd.OutOrStdout(), doc)
}
