package gateway

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parthrao/sqlite-mcp/pkg/policy"
)

func checkExecuteSQL(g *Gateway, in Args) []FieldError {
	problems := checkDatabaseField(in, "database")
	if err := g.policy.CheckStatement(in.String("query")); err != nil {
		problems = append(problems, FieldError{Field: "query", Problem: err.Error()})
	}
	return problems
}

func (g *Gateway) executeSQL(ctx context.Context, in Args) (Result, error) {
	database := in.String("database")
	query := in.String("query")
	params := in.Values("params")

	g.logger.Debug("executing sql",
		"database", database,
		"statement", policy.Keyword(query),
		"params", len(params),
	)

	res := Result{Database: database}
	err := g.withTx(ctx, database, true, func(tx *sqlx.Tx) error {
		if policy.ReturnsRows(query) {
			rows, total, err := g.queryRows(ctx, tx, query, params)
			if err != nil {
				return err
			}
			res.Data = rows
			res.RowCount = intPtr(total)
			res.Truncated = total > len(rows)
			return nil
		}

		r, err := tx.ExecContext(ctx, query, params...)
		if err != nil {
			return err
		}
		if !policy.IsDML(query) {
			res.Message = "statement executed"
			return nil
		}

		n, err := r.RowsAffected()
		if err != nil {
			return err
		}
		res.RowsAffected = int64Ptr(n)
		res.Message = fmt.Sprintf("%d rows affected", n)

		switch policy.StatementKeyword(query) {
		case "INSERT", "REPLACE":
			id, err := r.LastInsertId()
			if err != nil {
				return err
			}
			res.LastInsertID = int64Ptr(id)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if res.Truncated {
		g.logger.Warn("result truncated", "database", database, "rows", *res.RowCount, "limit", g.maxResults)
	}
	return res, nil
}

// queryRows reads up to maxResults rows and counts the rest.
func (g *Gateway) queryRows(ctx context.Context, tx *sqlx.Tx, query string, params []any) ([]Row, int, error) {
	rows, err := tx.QueryxContext(ctx, query, params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Row{}
	total := 0
	for rows.Next() {
		total++
		if len(out) >= g.maxResults {
			continue
		}
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, 0, err
		}
		out = append(out, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// normalizeRow turns driver byte slices into strings so TEXT columns read
// back as text.
func normalizeRow(row map[string]any) Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return Row(row)
}
