package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
)

const (
	listTablesQuery = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`
	findTableQuery   = `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`
	tableInfoQuery   = `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`
	indexListQuery   = `SELECT name, "unique" FROM pragma_index_list(?) ORDER BY seq`
	indexColumnQuery = `SELECT name FROM pragma_index_info(?) ORDER BY seqno`
)

type CreatedTable struct {
	Table     string `json:"table"`
	Statement string `json:"statement"`
}

func checkCreateTable(_ *Gateway, in Args) []FieldError {
	problems := checkDatabaseField(in, "database")

	table := in.String("table_name")
	if p := identProblem(table); p != "" {
		problems = append(problems, FieldError{Field: "table_name", Problem: p})
	}

	columns := in.StringMap("columns")
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := identProblem(name); p != "" {
			problems = append(problems, FieldError{Field: "columns." + name, Problem: p})
			continue
		}
		if p := columnTypeProblem(columns[name]); p != "" {
			problems = append(problems, FieldError{Field: "columns." + name, Problem: p})
		}
	}

	if pk := in.String("primary_key"); pk != "" {
		if _, ok := columns[pk]; !ok {
			problems = append(problems, FieldError{Field: "primary_key", Problem: fmt.Sprintf("%q is not one of the columns", pk)})
		}
	}
	return problems
}

func (g *Gateway) createTable(ctx context.Context, in Args) (Result, error) {
	database := in.String("database")
	table := in.String("table_name")
	stmt := createTableStatement(table, in.StringMap("columns"), in.String("primary_key"))

	g.logger.Info("creating table", "database", database, "table", table)
	err := g.withTx(ctx, database, true, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, stmt)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Database: database,
		Message:  fmt.Sprintf("table %s created", table),
		Data:     CreatedTable{Table: table, Statement: stmt},
	}, nil
}

func checkDatabaseOnly(_ *Gateway, in Args) []FieldError {
	return checkDatabaseField(in, "database")
}

func (g *Gateway) listTables(ctx context.Context, in Args) (Result, error) {
	database := in.String("database")

	tables := []string{}
	err := g.withTx(ctx, database, false, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &tables, listTablesQuery)
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Database: database,
		Data:     tables,
		RowCount: intPtr(len(tables)),
	}, nil
}

func checkGetSchema(_ *Gateway, in Args) []FieldError {
	problems := checkDatabaseField(in, "database")
	if table := in.String("table_name"); table != "" {
		if p := identProblem(table); p != "" {
			problems = append(problems, FieldError{Field: "table_name", Problem: p})
		}
	}
	return problems
}

func (g *Gateway) getSchema(ctx context.Context, in Args) (Result, error) {
	database := in.String("database")
	only := in.String("table_name")

	var schema []TableInfo
	err := g.withTx(ctx, database, false, func(tx *sqlx.Tx) error {
		var tables []string
		if only != "" {
			if err := tx.SelectContext(ctx, &tables, findTableQuery, only); err != nil {
				return err
			}
			if len(tables) == 0 {
				return fmt.Errorf("no such table: %s", only)
			}
		} else if err := tx.SelectContext(ctx, &tables, listTablesQuery); err != nil {
			return err
		}

		schema = make([]TableInfo, 0, len(tables))
		for _, table := range tables {
			info, err := describeTable(ctx, tx, table)
			if err != nil {
				g.logger.Debug("describing table failed", "database", database, "table", table, "error", err)
				return err
			}
			schema = append(schema, info)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Database: database,
		Data:     schema,
		RowCount: intPtr(len(schema)),
	}, nil
}

type pragmaColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

type pragmaIndex struct {
	Name   string `db:"name"`
	Unique int    `db:"unique"`
}

func describeTable(ctx context.Context, tx *sqlx.Tx, table string) (TableInfo, error) {
	info := TableInfo{
		Name:    table,
		Columns: []ColumnInfo{},
		Indexes: []IndexInfo{},
	}

	var cols []pragmaColumn
	if err := tx.SelectContext(ctx, &cols, tableInfoQuery, table); err != nil {
		return TableInfo{}, err
	}
	for _, c := range cols {
		col := ColumnInfo{
			Name:       c.Name,
			Type:       c.Type,
			NotNull:    c.NotNull != 0,
			PrimaryKey: c.PK != 0,
		}
		if c.Default.Valid {
			v := c.Default.String
			col.DefaultValue = &v
		}
		info.Columns = append(info.Columns, col)
	}

	var indexes []pragmaIndex
	if err := tx.SelectContext(ctx, &indexes, indexListQuery, table); err != nil {
		return TableInfo{}, err
	}
	for _, idx := range indexes {
		var names []sql.NullString
		if err := tx.SelectContext(ctx, &names, indexColumnQuery, idx.Name); err != nil {
			return TableInfo{}, err
		}
		columns := make([]string, len(names))
		for i, n := range names {
			columns[i] = n.String
			if !n.Valid {
				columns[i] = "<expression>"
			}
		}
		info.Indexes = append(info.Indexes, IndexInfo{
			Name:    idx.Name,
			Unique:  idx.Unique != 0,
			Columns: columns,
		})
	}

	if err := tx.GetContext(ctx, &info.RowCount, "SELECT COUNT(*) FROM "+quoteIdent(table)); err != nil {
		return TableInfo{}, err
	}
	return info, nil
}
