package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parthrao/sqlite-mcp/pkg/policy"
)

func TestKeyword(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM t":                "SELECT",
		"  select 1":                     "SELECT",
		"-- leading comment\nINSERT ...": "INSERT",
		"/* block */ update t set a=1":   "UPDATE",
		"(SELECT 1)":                     "SELECT",
		"":                               "",
		"WITH x AS (SELECT 1) SELECT *":  "WITH",
	}
	for in, want := range tests {
		assert.Equal(t, want, policy.Keyword(in), "query %q", in)
	}
}

func TestStatementCount(t *testing.T) {
	tests := map[string]int{
		"SELECT 1":     1,
		"SELECT 1;":    1,
		"SELECT 1; ; ": 1,
		"SELECT ';'":   1,
		`SELECT "a;b" FROM t`:                      1,
		"SELECT 1 -- ; trailing":                    1,
		"SELECT 1 /* ; */":                          1,
		"SELECT 'it''s; fine'":                      1,
		"SELECT 1; DROP TABLE users":                2,
		"INSERT INTO t VALUES ('x'); DELETE FROM t": 2,
		"-- only a comment":                         0,
		"   ":                                       0,
	}
	for in, want := range tests {
		assert.Equal(t, want, policy.StatementCount(in), "query %q", in)
	}
}

func TestReturnsRows(t *testing.T) {
	tests := map[string]bool{
		"SELECT * FROM users":                       true,
		"with x as (select 1) select * from x":      true,
		"PRAGMA table_info(users)":                  true,
		"EXPLAIN QUERY PLAN SELECT 1":               true,
		"VALUES (1), (2)":                           true,
		"INSERT INTO t (a) VALUES (1)":              false,
		"INSERT INTO t (a) VALUES (1) RETURNING id": true,
		"DELETE FROM t WHERE name = 'returning'":    false,
		"WITH x AS (SELECT 1) DELETE FROM t":        false,
		"CREATE TABLE t (id INTEGER)":               false,
		"UPDATE t SET note = 'select' WHERE id = 1": false,

		"WITH c AS (SELECT replace(name,'a','b') AS n FROM t) SELECT n FROM c": true,
		"WITH c AS (SELECT 1 AS delete_count) SELECT * FROM c":                 true,
		"WITH replace AS (SELECT 1 AS n) SELECT n FROM replace":                true,
		"WITH t(a) AS (VALUES (1)) INSERT INTO u SELECT a FROM t":              false,
	}
	for in, want := range tests {
		assert.Equal(t, want, policy.ReturnsRows(in), "query %q", in)
	}
}

func TestIsDML(t *testing.T) {
	assert.True(t, policy.IsDML("INSERT INTO t VALUES (1)"))
	assert.True(t, policy.IsDML("replace into t values (1)"))
	assert.True(t, policy.IsDML("WITH x AS (SELECT 1) UPDATE t SET a = 1"))
	assert.False(t, policy.IsDML("CREATE TABLE t (a)"))
	assert.False(t, policy.IsDML("SELECT 'insert'"))
	assert.False(t, policy.IsDML("WITH c AS (SELECT replace(name,'a','b') AS n FROM t) SELECT n FROM c"))
	assert.False(t, policy.IsDML("WITH c AS (SELECT 1) SELECT update_count FROM c"))
}

func TestStatementKeyword(t *testing.T) {
	tests := map[string]string{
		"select 1":                                                                            "SELECT",
		"WITH RECURSIVE cnt(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM cnt) SELECT x FROM cnt": "SELECT",
		"WITH a AS (SELECT 1), b AS NOT MATERIALIZED (SELECT 2) DELETE FROM t":                "DELETE",
		"WITH insert_log(id) AS (SELECT 1) REPLACE INTO t SELECT id FROM insert_log":          "REPLACE",
		"WITH x AS (SELECT 1) SELECT(1)":                                                      "SELECT",
		"WITH x AS (SELECT 1)":                                                                "WITH",
	}
	for in, want := range tests {
		assert.Equal(t, want, policy.StatementKeyword(in), "query %q", in)
	}
}

func TestStripPreservesLength(t *testing.T) {
	in := "SELECT 'a;b', \"c\" -- d\nFROM [e f] /* g */"
	out := policy.Strip(in)
	assert.Len(t, out, len(in))
	assert.NotContains(t, out, ";")
	assert.Contains(t, out, "FROM")
	assert.Contains(t, out, "\n")
}
