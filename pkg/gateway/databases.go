package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parthrao/sqlite-mcp/pkg/dbmanager"
)

const backupTimeFormat = "20060102_150405"

var optimizeStatements = []string{"VACUUM", "ANALYZE"}

func (g *Gateway) listDatabases(_ context.Context, _ Args) (Result, error) {
	dbs, err := g.dbs.List()
	if err != nil {
		return Result{}, err
	}
	if dbs == nil {
		dbs = []dbmanager.DatabaseInfo{}
	}
	return Result{
		Data:     dbs,
		RowCount: intPtr(len(dbs)),
	}, nil
}

func checkCreateDatabase(_ *Gateway, in Args) []FieldError {
	if in.String("database") == "" {
		return nil
	}
	return checkDatabaseField(in, "database")
}

func (g *Gateway) createDatabase(_ context.Context, in Args) (Result, error) {
	name := in.String("database")
	if name == "" {
		name = uuid.NewString() + dbmanager.Extension
	}

	info, err := g.dbs.Create(name)
	if err != nil {
		return Result{}, err
	}
	g.logger.Info("database created", "database", info.Name)

	return Result{
		Database: info.Name,
		Message:  fmt.Sprintf("database %s created", info.Name),
		Data:     info,
	}, nil
}

func checkBackup(_ *Gateway, in Args) []FieldError {
	problems := checkDatabaseField(in, "database")
	if in.String("backup_name") != "" {
		problems = append(problems, checkDatabaseField(in, "backup_name")...)
	}
	return problems
}

func backupName(database string, at time.Time) string {
	stem := strings.TrimSuffix(database, dbmanager.Extension)
	return stem + "_backup_" + at.Format(backupTimeFormat) + dbmanager.Extension
}

func (g *Gateway) backupDatabase(ctx context.Context, in Args) (Result, error) {
	database := in.String("database")
	target := in.String("backup_name")
	if target == "" {
		target = backupName(database, g.now())
	}

	start := time.Now()
	info, err := g.dbs.Backup(ctx, database, target)
	if err != nil {
		return Result{}, err
	}
	g.logger.Info("database backed up",
		"database", database,
		"backup", info.Name,
		"size_bytes", info.SizeBytes,
		"elapsed", time.Since(start),
	)

	return Result{
		Database: database,
		Message:  fmt.Sprintf("database %s backed up to %s", database, info.Name),
		Data:     info,
	}, nil
}

func (g *Gateway) optimizeDatabase(ctx context.Context, in Args) (Result, error) {
	database := in.String("database")

	var steps []OptimizeStep
	err := g.withConn(ctx, database, func(conn *sqlx.Conn) error {
		for _, stmt := range optimizeStatements {
			start := time.Now()
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				g.logger.Debug("optimize step failed", "database", database, "statement", stmt, "error", err)
				return err
			}
			steps = append(steps, OptimizeStep{
				Statement: stmt,
				Elapsed:   time.Since(start).String(),
			})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Database: database,
		Message:  fmt.Sprintf("database %s optimized", database),
		Data:     steps,
	}, nil
}
