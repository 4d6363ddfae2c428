package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/onsdata/crosswalk-cli/internal/crosswalk"
	"github.com/onsdata/crosswalk-cli/internal/db"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Load augmented crosswalks into Postgres",
	Long:  "Replaces the configured single-link and weighted tables with the contents of the given crosswalk CSVs, each in one transaction.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("publish"); err != nil {
			return err
		}

		sliPath, _ := cmd.Flags().GetString("sli")
		weightedPath, _ := cmd.Flags().GetString("weighted")
		if sliPath == "" && weightedPath == "" {
			return eris.New("publish: pass --sli and/or --weighted")
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		return publish(ctx, pool, sliPath, weightedPath)
	},
}

// publish loads whichever crosswalk files are given and replaces their tables.
func publish(ctx context.Context, pool db.Pool, sliPath, weightedPath string) error {
	log := zap.L().With(zap.String("command", "publish"))

	if sliPath != "" {
		rows, err := crosswalk.LoadSLI(sliPath)
		if err != nil {
			return err
		}
		n, err := db.ReplaceTable(ctx, pool, sliTable(cfg.Store.SLITable), sliRows(rows))
		if err != nil {
			return err
		}
		log.Info("published sli crosswalk", zap.String("table", cfg.Store.SLITable), zap.Int64("rows", n))
		fmt.Printf("Published %d rows to %s\n", n, cfg.Store.SLITable)
	}

	if weightedPath != "" {
		rows, err := crosswalk.LoadWeighted(weightedPath)
		if err != nil {
			return err
		}
		n, err := db.ReplaceTable(ctx, pool, weightedTable(cfg.Store.WeightedTable), weightedRows(rows))
		if err != nil {
			return err
		}
		log.Info("published weighted crosswalk", zap.String("table", cfg.Store.WeightedTable), zap.Int64("rows", n))
		fmt.Printf("Published %d rows to %s\n", n, cfg.Store.WeightedTable)
	}
	return nil
}

func sliTable(name string) db.TableSpec {
	return db.TableSpec{Table: name, Columns: []db.Column{
		{Name: "postal_code", Type: "TEXT"},
		{Name: "ons_id", Type: "TEXT"},
	}}
}

func weightedTable(name string) db.TableSpec {
	return db.TableSpec{Table: name, Columns: []db.Column{
		{Name: "postal_code", Type: "TEXT"},
		{Name: "ons_id", Type: "TEXT"},
		{Name: "weight", Type: "DOUBLE PRECISION"},
	}}
}

func sliRows(rows []crosswalk.Row) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.PostalCode, r.ONSID}
	}
	return out
}

func weightedRows(rows []crosswalk.WeightedRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.PostalCode, r.ONSID, r.Weight}
	}
	return out
}

// storePool creates a pgxpool.Pool for store.database_url.
func storePool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "publish: create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "publish: ping database")
	}

	return pool, nil
}

func init() {
	publishCmd.Flags().String("sli", "", "single-link crosswalk CSV to publish")
	publishCmd.Flags().String("weighted", "", "weighted crosswalk CSV to publish")
	rootCmd.AddCommand(publishCmd)
}
