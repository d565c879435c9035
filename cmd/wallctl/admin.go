package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"memorywall/internal/common"
	"memorywall/internal/dbmongo"
	"memorywall/internal/dbmysql"
	"memorywall/internal/realtime"
	"memorywall/internal/wall"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long: `Hashes the admin password for the service configuration. Without an
argument the password is read from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPassword,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the MySQL tables",
	RunE:  runMigrate,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to the backing stores",
	RunE:  runCheck,
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := common.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := dbmysql.NewMySQL(cfg, logger)
	if err != nil {
		return err
	}
	defer dbmysql.Close(db)

	if err := dbmysql.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ migration completed")
	return nil
}

type check struct {
	name string
	run  func(ctx context.Context) error
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	checks := []check{
		{"mysql", func(ctx context.Context) error {
			db, err := dbmysql.NewMySQL(cfg, logger)
			if err != nil {
				return err
			}
			defer dbmysql.Close(db)
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{"mongodb", func(ctx context.Context) error {
			mc, err := dbmongo.NewMongoConnection(cfg)
			if err != nil {
				return err
			}
			defer mc.Close(context.Background())
			return mc.Ping(ctx)
		}},
	}
	if cfg.Redis.Enabled {
		checks = append(checks, check{"redis", func(ctx context.Context) error {
			client, err := wall.ConnectRedis(cfg, logger)
			if err != nil {
				return err
			}
			return client.Close()
		}})
	}
	if cfg.NATS.Enabled {
		checks = append(checks, check{"nats", func(ctx context.Context) error {
			nc, err := realtime.ConnectNATS(cfg.NATS.URL, logger)
			if err != nil {
				return err
			}
			defer nc.Close()
			return nc.FlushWithContext(ctx)
		}})
	}

	results := make([]error, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		i, c := i, c
		g.Go(func() error {
			results[i] = c.run(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return report(cmd.OutOrStdout(), checks, results)
}

func report(w io.Writer, checks []check, results []error) error {
	failed := 0
	for i, c := range checks {
		if results[i] != nil {
			failed++
			fmt.Fprintf(w, "❌ %-8s %v\n", c.name, results[i])
			continue
		}
		fmt.Fprintf(w, "✅ %-8s ok\n", c.name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}
