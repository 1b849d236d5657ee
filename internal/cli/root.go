// Package cli реализует команды операторской утилиты tapctl.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/mmeshcher/tapranked/internal/repository"
	"github.com/mmeshcher/tapranked/internal/service"
)

// Opener открывает хранилище по строке подключения.
type Opener func(ctx context.Context, databaseURI string) (service.Repository, error)

type cliEnv struct {
	DatabaseURI string `env:"DATABASE_URI"`
}

type options struct {
	databaseURI string
	output      string
	open        Opener
}

// NewRootCmd возвращает корневую команду tapctl, работающую с PostgreSQL.
func NewRootCmd() *cobra.Command {
	return newRootCmd(openPostgres)
}

func openPostgres(_ context.Context, databaseURI string) (service.Repository, error) {
	if databaseURI == "" {
		return nil, errors.New("database URI is required: pass --database-uri or set DATABASE_URI")
	}
	repo, err := repository.NewPostgresRepository(databaseURI)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func newRootCmd(open Opener) *cobra.Command {
	opts := &options{open: open}

	rootCmd := &cobra.Command{
		Use:           "tapctl",
		Short:         "tapranked operator tool",
		Long:          "tapctl applies migrations, provisions businesses and prizes, and prints leaderboards.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("database-uri") {
				return nil
			}
			e, err := env.ParseAs[cliEnv]()
			if err != nil {
				return fmt.Errorf("parse env: %w", err)
			}
			opts.databaseURI = e.DatabaseURI
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.databaseURI, "database-uri", "", "PostgreSQL connection string (env DATABASE_URI)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text|json")

	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newBusinessCmd(opts))
	rootCmd.AddCommand(newPrizeCmd(opts))
	rootCmd.AddCommand(newLeaderboardCmd(opts))

	return rootCmd
}

// withService открывает хранилище, выполняет fn и закрывает хранилище.
func (o *options) withService(ctx context.Context, fn func(svc *service.Service) error) error {
	repo, err := o.open(ctx, o.databaseURI)
	if err != nil {
		return err
	}

	svc := service.NewService(repo, service.Options{})
	defer svc.Close()

	return fn(svc)
}

func (o *options) jsonOutput() bool {
	return o.output == "json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
