package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parthrao/sqlite-mcp/pkg/dbmanager"
	"github.com/parthrao/sqlite-mcp/pkg/policy"
)

const (
	DefaultDatabase   = "main.db"
	DefaultMaxResults = 1000
)

// Databases is the store the gateway runs statements against.
// *dbmanager.Manager implements it.
type Databases interface {
	Acquire(name string, create bool) (*sqlx.DB, func(), error)
	Create(name string) (dbmanager.DatabaseInfo, error)
	List() ([]dbmanager.DatabaseInfo, error)
	Backup(ctx context.Context, src, dst string) (dbmanager.DatabaseInfo, error)
}

type Options struct {
	Databases       Databases
	Policy          *policy.Policy
	DefaultDatabase string
	MaxResults      int
	Logger          *slog.Logger
	Now             func() time.Time

	// Enabled limits the registered operations to these names. Empty
	// registers all of them.
	Enabled []string
}

// Gateway maps a fixed set of named operations onto SQL against the store.
type Gateway struct {
	dbs        Databases
	policy     *policy.Policy
	defaultDB  string
	maxResults int
	logger     *slog.Logger
	now        func() time.Time

	ops   map[string]Operation
	order []string
}

func New(opts Options) (*Gateway, error) {
	if opts.Databases == nil {
		return nil, errors.New("databases are required")
	}

	g := &Gateway{
		dbs:        opts.Databases,
		policy:     opts.Policy,
		defaultDB:  opts.DefaultDatabase,
		maxResults: opts.MaxResults,
		logger:     opts.Logger,
		now:        opts.Now,
		ops:        make(map[string]Operation),
	}
	if g.policy == nil {
		g.policy = policy.Default()
	}
	if g.defaultDB == "" {
		g.defaultDB = DefaultDatabase
	}
	if _, err := dbmanager.NormalizeName(g.defaultDB); err != nil {
		return nil, fmt.Errorf("default database: %w", err)
	}
	if g.maxResults <= 0 {
		g.maxResults = DefaultMaxResults
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "gateway")
	if g.now == nil {
		g.now = time.Now
	}

	enabled := make(map[string]bool, len(opts.Enabled))
	for _, name := range opts.Enabled {
		enabled[name] = true
	}
	for _, op := range g.operations() {
		if len(enabled) > 0 && !enabled[op.Name] {
			continue
		}
		delete(enabled, op.Name)
		g.ops[op.Name] = op
		g.order = append(g.order, op.Name)
	}
	for name := range enabled {
		return nil, fmt.Errorf("cannot enable unknown operation %q", name)
	}
	return g, nil
}

// Operations lists the registered operations in registration order.
func (g *Gateway) Operations() []Operation {
	out := make([]Operation, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.ops[name])
	}
	return out
}

func (g *Gateway) Operation(name string) (Operation, bool) {
	op, ok := g.ops[name]
	return op, ok
}

// Invoke runs the named operation. Arguments are checked in full before the
// store is touched, so a rejected call has no side effects. Every error is an
// *Error.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	op, ok := g.ops[name]
	if !ok {
		return Result{}, unknownOperation(name)
	}

	in, problems := op.bind(args)
	if len(problems) == 0 && op.check != nil {
		problems = op.check(g, in)
	}
	if len(problems) > 0 {
		return Result{}, invalidArguments(name, problems...)
	}

	if err := g.policy.CheckArguments(name, args); err != nil {
		return Result{}, &Error{Kind: KindInvalidArguments, Op: name, Err: err}
	}

	res, err := op.run(g, ctx, in)
	if err != nil {
		err = storageError(name, err)
		g.logger.Debug("operation failed", "operation", name, "error", err)
		return Result{}, err
	}

	res.Success = true
	res.Operation = name
	res.Timestamp = g.now().UTC()
	return res, nil
}

// withTx runs fn in a transaction on the named database. The transaction is
// committed only if fn succeeds and is rolled back on every other path; the
// handle is released either way.
func (g *Gateway) withTx(ctx context.Context, database string, create bool, fn func(tx *sqlx.Tx) error) error {
	db, release, err := g.dbs.Acquire(database, create)
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// withConn is withTx for statements SQLite refuses to run inside a
// transaction.
func (g *Gateway) withConn(ctx context.Context, database string, fn func(conn *sqlx.Conn) error) error {
	db, release, err := g.dbs.Acquire(database, false)
	if err != nil {
		return err
	}
	defer release()

	conn, err := db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn)
}

func (g *Gateway) operations() []Operation {
	databaseParam := Param{
		Name:        "database",
		Type:        TypeString,
		Description: "Database file name inside the data directory. Defaults to " + g.defaultDB,
		Default:     g.defaultDB,
	}

	return []Operation{
		{
			Name:        "create_table",
			Description: "Create a new table with the given columns. Fails if the table already exists.",
			Params: []Param{
				databaseParam,
				{Name: "table_name", Type: TypeString, Required: true, Description: "Name of the table to create"},
				{Name: "columns", Type: TypeStringMap, Required: true, Description: "Column definitions as name to SQL type, e.g. {\"id\": \"INTEGER\", \"name\": \"TEXT NOT NULL\"}"},
				{Name: "primary_key", Type: TypeString, Description: "Column to declare as PRIMARY KEY"},
			},
			check: checkCreateTable,
			run:   (*Gateway).createTable,
		},
		{
			Name:        "execute_sql",
			Description: "Execute a single SQL statement. Use ? placeholders with params for every value; values are bound, never interpolated.",
			Params: []Param{
				databaseParam,
				{Name: "query", Type: TypeString, Required: true, Description: "SQL statement to run. Must only be a single SQL statement."},
				{Name: "params", Type: TypeValueList, Description: "Values bound to the ? placeholders, in order"},
			},
			Destructive: true,
			check:       checkExecuteSQL,
			run:         (*Gateway).executeSQL,
		},
		{
			Name:        "list_tables",
			Description: "List the user tables in a database.",
			Params:      []Param{databaseParam},
			ReadOnly:    true,
			check:       checkDatabaseOnly,
			run:         (*Gateway).listTables,
		},
		{
			Name:        "get_schema",
			Description: "Describe tables: columns, indexes and row counts.",
			Params: []Param{
				databaseParam,
				{Name: "table_name", Type: TypeString, Description: "Only describe this table"},
			},
			ReadOnly: true,
			check:    checkGetSchema,
			run:      (*Gateway).getSchema,
		},
		{
			Name:        "list_databases",
			Description: "List the database files in the data directory.",
			ReadOnly:    true,
			run:         (*Gateway).listDatabases,
		},
		{
			Name:        "create_database",
			Description: "Create a new empty database. A unique name is generated when none is given.",
			Params: []Param{
				{Name: "database", Type: TypeString, Description: "Database file name to create"},
			},
			check: checkCreateDatabase,
			run:   (*Gateway).createDatabase,
		},
		{
			Name:        "backup_database",
			Description: "Copy a database to a new file in the data directory using SQLite's online backup.",
			Params: []Param{
				{Name: "database", Type: TypeString, Required: true, Description: "Database to back up"},
				{Name: "backup_name", Type: TypeString, Description: "File name of the copy. Defaults to <name>_backup_<timestamp>.db"},
			},
			check: checkBackup,
			run:   (*Gateway).backupDatabase,
		},
		{
			Name:        "optimize_database",
			Description: "Run VACUUM and ANALYZE on a database.",
			Params:      []Param{databaseParam},
			check:       checkDatabaseOnly,
			run:         (*Gateway).optimizeDatabase,
		},
	}
}
