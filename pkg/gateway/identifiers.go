package gateway

import (
	"regexp"
	"sort"
	"strings"

	"github.com/parthrao/sqlite-mcp/pkg/dbmanager"
	"github.com/parthrao/sqlite-mcp/pkg/policy"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	primaryKey   = regexp.MustCompile(`(?i)\bPRIMARY\s+KEY\b`)
)

// quoteIdent quotes a SQL identifier. Names are validated before they get
// here; quoting keeps keywords such as "order" usable as names.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func identProblem(name string) string {
	if !identPattern.MatchString(name) {
		return "must start with a letter or underscore and contain only letters, digits and underscores"
	}
	return ""
}

// columnTypeProblem rejects type strings that could end the column
// definition early. Constraints such as NOT NULL, DEFAULT or CHECK (...) stay
// allowed.
func columnTypeProblem(typ string) string {
	switch {
	case strings.TrimSpace(typ) == "":
		return "type must not be empty"
	case strings.Contains(typ, ";"):
		return "type must not contain ';'"
	case strings.Contains(typ, "--") || strings.Contains(typ, "/*"):
		return "type must not contain comments"
	case strings.Count(typ, "'")%2 != 0 || strings.Count(typ, `"`)%2 != 0:
		return "type has an unterminated quote"
	}

	depth := 0
	for _, r := range policy.Strip(typ) {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return "type must not contain ',' outside parentheses"
			}
		}
		if depth < 0 {
			return "type has unbalanced parentheses"
		}
	}
	if depth != 0 {
		return "type has unbalanced parentheses"
	}
	return ""
}

// checkDatabaseField normalizes the database name held in field.
func checkDatabaseField(in Args, field string) []FieldError {
	name, err := dbmanager.NormalizeName(in.String(field))
	if err != nil {
		return []FieldError{{Field: field, Problem: err.Error()}}
	}
	in[field] = name
	return nil
}

// columnOrder puts the primary key column first and the rest by name, since
// a JSON object carries no order of its own.
func columnOrder(columns map[string]string, pk string) []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		if name != pk {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := columns[pk]; ok {
		names = append([]string{pk}, names...)
	}
	return names
}

func createTableStatement(table string, columns map[string]string, pk string) string {
	defs := make([]string, 0, len(columns))
	for _, name := range columnOrder(columns, pk) {
		def := quoteIdent(name) + " " + strings.TrimSpace(columns[name])
		if name == pk && !primaryKey.MatchString(columns[name]) {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return "CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(defs, ", ") + ")"
}
