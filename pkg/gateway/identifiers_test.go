package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateTableStatement(t *testing.T) {
	stmt := createTableStatement("orders", map[string]string{
		"total":  "REAL NOT NULL",
		"id":     "INTEGER",
		"status": "TEXT DEFAULT 'new'",
	}, "id")
	assert.Equal(t,
		`CREATE TABLE "orders" ("id" INTEGER PRIMARY KEY, "status" TEXT DEFAULT 'new', "total" REAL NOT NULL)`,
		stmt)

	stmt = createTableStatement("users", map[string]string{
		"id":   "integer primary key autoincrement",
		"name": "TEXT",
	}, "id")
	assert.Equal(t, `CREATE TABLE "users" ("id" integer primary key autoincrement, "name" TEXT)`, stmt)

	stmt = createTableStatement("logs", map[string]string{"b": "TEXT", "a": "TEXT"}, "")
	assert.Equal(t, `CREATE TABLE "logs" ("a" TEXT, "b" TEXT)`, stmt)
}

func TestColumnTypeProblem(t *testing.T) {
	ok := []string{
		"INTEGER",
		"TEXT NOT NULL",
		"VARCHAR(255)",
		"DECIMAL(10, 2) CHECK (amount > 0)",
		"TEXT DEFAULT 'a(b'",
		"INTEGER REFERENCES users(id) ON DELETE CASCADE",
	}
	for _, typ := range ok {
		assert.Empty(t, columnTypeProblem(typ), typ)
	}

	bad := []string{
		"",
		"   ",
		"INTEGER; DROP TABLE users",
		"TEXT -- comment",
		"TEXT /* comment */",
		"TEXT DEFAULT 'open",
		"INTEGER)",
		"CHECK (x > (1)",
		"INTEGER) , evil TEXT, (x",
		"INTEGER, evil TEXT",
	}
	for _, typ := range bad {
		assert.NotEmpty(t, columnTypeProblem(typ), typ)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"order"`, quoteIdent("order"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
