package policy

import (
	"regexp"
	"strings"
)

var returningClause = regexp.MustCompile(`\bRETURNING\b`)

// mainKeywords can follow the common table expressions of a WITH clause.
var mainKeywords = map[string]bool{
	"SELECT":  true,
	"VALUES":  true,
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"REPLACE": true,
}

// rowKeywords lead statements that produce a result set.
var rowKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"PRAGMA":  true,
	"EXPLAIN": true,
	"VALUES":  true,
}

// Strip blanks out string literals, quoted identifiers and comments so that
// keywords and separators can be found without being fooled by their contents.
// The result has the same length as the input.
func Strip(query string) string {
	out := []byte(query)
	blank := func(from, to int) {
		for i := from; i < to && i < len(out); i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
	}

	for i := 0; i < len(query); {
		switch c := query[i]; {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(query, i+1, c)
			blank(i, end)
			i = end
		case c == '[':
			end := strings.IndexByte(query[i+1:], ']')
			if end < 0 {
				end = len(query)
			} else {
				end += i + 2
			}
			blank(i, end)
			i = end
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query)
			} else {
				end += i
			}
			blank(i, end)
			i = end
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query)
			} else {
				end += i + 4
			}
			blank(i, end)
			i = end
		default:
			i++
		}
	}
	return string(out)
}

// closingQuote returns the index just past the quote that closes a literal
// opened before start. A doubled quote is an escaped quote.
func closingQuote(s string, start int, q byte) int {
	for i := start; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// Keyword returns the upper-cased first word of the statement, ignoring
// leading comments and whitespace.
func Keyword(query string) string {
	return leadingKeyword(Strip(query))
}

func leadingKeyword(stripped string) string {
	s := strings.TrimLeft(stripped, " \t\r\n(")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_')
	})
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// StatementCount reports how many non-empty statements the text contains.
func StatementCount(query string) int {
	n := 0
	for _, part := range strings.Split(Strip(query), ";") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// StatementKeyword is Keyword, except that for a WITH statement it returns the
// keyword of the statement the common table expressions feed into.
func StatementKeyword(query string) string {
	return statementKeyword(Strip(query))
}

func statementKeyword(stripped string) string {
	kw := leadingKeyword(stripped)
	if kw != "WITH" {
		return kw
	}

	upper := strings.ToUpper(stripped)
	depth := 0
	for i := strings.Index(upper, "WITH") + len("WITH"); i < len(upper); {
		switch c := upper[i]; {
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case isWordByte(c):
			j := i
			for j < len(upper) && isWordByte(upper[j]) {
				j++
			}
			if word := upper[i:j]; depth == 0 && mainKeywords[word] && !namesTable(upper[j:]) {
				return word
			}
			i = j
		default:
			i++
		}
	}
	return kw
}

// namesTable reports whether rest, the text after a word, continues the way a
// common table expression name does: an optional column list, then AS.
func namesTable(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	if strings.HasPrefix(rest, "(") {
		depth := 0
		end := len(rest)
		for i := 0; i < len(rest); i++ {
			if rest[i] == '(' {
				depth++
			} else if rest[i] == ')' {
				depth--
				if depth == 0 {
					end = i + 1
					break
				}
			}
		}
		rest = strings.TrimLeft(rest[end:], " \t\r\n")
	}
	return strings.HasPrefix(rest, "AS") && (len(rest) == 2 || !isWordByte(rest[2]))
}

func isWordByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c >= 0x80
}

// ReturnsRows reports whether the statement produces a result set that must
// be read back rather than just executed.
func ReturnsRows(query string) bool {
	stripped := strings.ToUpper(Strip(query))
	if returningClause.MatchString(stripped) {
		return true
	}
	return rowKeywords[statementKeyword(stripped)]
}

// IsDML reports whether the statement modifies rows, which is when an affected
// row count is meaningful.
func IsDML(query string) bool {
	switch StatementKeyword(query) {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		return true
	}
	return false
}
