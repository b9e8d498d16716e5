package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parthrao/sqlite-mcp/pkg/policy"
)

func TestCheckStatementDefaults(t *testing.T) {
	p := policy.Default()

	assert.NoError(t, p.CheckStatement("SELECT * FROM users WHERE id = ?"))
	assert.NoError(t, p.CheckStatement("insert into users (name) values (?);"))
	assert.NoError(t, p.CheckStatement("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.NoError(t, p.CheckStatement("EXPLAIN QUERY PLAN SELECT * FROM users WHERE id = ?"))

	assert.ErrorIs(t, p.CheckStatement("PRAGMA journal_mode = DELETE"), policy.ErrStatementNotAllowed)
	assert.ErrorIs(t, p.CheckStatement("ATTACH DATABASE 'x.db' AS x"), policy.ErrStatementNotAllowed)
	assert.ErrorIs(t, p.CheckStatement("SELECT 1; DROP TABLE users"), policy.ErrMultipleStatements)
	assert.ErrorIs(t, p.CheckStatement("/* nothing */"), policy.ErrEmptyStatement)
}

func TestCheckStatementCustomAllowList(t *testing.T) {
	p, err := policy.New(policy.Config{AllowedStatements: []string{"select", " pragma "}})
	require.NoError(t, err)

	assert.Equal(t, []string{"PRAGMA", "SELECT"}, p.Allowed())
	assert.NoError(t, p.CheckStatement("PRAGMA table_info(users)"))
	assert.ErrorIs(t, p.CheckStatement("DELETE FROM users"), policy.ErrStatementNotAllowed)
}

func TestCheckArguments(t *testing.T) {
	p, err := policy.New(policy.Config{
		Constraints: map[string]string{
			"execute_sql":  `!args.query.contains("secrets")`,
			"create_table": `args.table_name.startsWith("app_")`,
		},
	})
	require.NoError(t, err)

	assert.NoError(t, p.CheckArguments("execute_sql", map[string]any{"query": "SELECT * FROM users"}))
	assert.ErrorIs(t, p.CheckArguments("execute_sql", map[string]any{"query": "SELECT * FROM secrets"}), policy.ErrConstraintRejected)

	assert.NoError(t, p.CheckArguments("create_table", map[string]any{"table_name": "app_users"}))
	assert.ErrorIs(t, p.CheckArguments("create_table", map[string]any{"table_name": "users"}), policy.ErrConstraintRejected)

	// No constraint configured.
	assert.NoError(t, p.CheckArguments("list_tables", nil))
}

func TestCheckArgumentsEvaluationError(t *testing.T) {
	p, err := policy.New(policy.Config{
		Constraints: map[string]string{"create_table": `args.table_name == "x"`},
	})
	require.NoError(t, err)

	// Missing key fails evaluation, which rejects the call.
	err = p.CheckArguments("create_table", map[string]any{})
	assert.ErrorIs(t, err, policy.ErrConstraintRejected)
}

func TestNewRejectsBadConstraints(t *testing.T) {
	_, err := policy.New(policy.Config{
		Constraints: map[string]string{"execute_sql": `args.query.contains(`},
	})
	assert.Error(t, err)

	_, err = policy.New(policy.Config{
		Constraints: map[string]string{"execute_sql": `"not a bool"`},
	})
	assert.Error(t, err)
}
