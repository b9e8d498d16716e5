package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
)

// DefaultAllowedStatements are the statement keywords execute_sql accepts
// when nothing else is configured.
var DefaultAllowedStatements = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "WITH", "EXPLAIN",
}

var (
	ErrEmptyStatement      = errors.New("query contains no statement")
	ErrMultipleStatements  = errors.New("query must contain a single statement")
	ErrStatementNotAllowed = errors.New("statement not allowed")
	ErrConstraintRejected  = errors.New("rejected by constraint")
)

type Config struct {
	// AllowedStatements lists the leading keywords execute_sql may run.
	AllowedStatements []string
	// Constraints maps an operation name to a CEL expression over `args`
	// that must evaluate to true for the call to proceed.
	Constraints map[string]string
}

type Policy struct {
	allowed     map[string]bool
	constraints map[string]cel.Program
	sources     map[string]string
}

// Default allows DefaultAllowedStatements and has no constraints.
func Default() *Policy {
	p, err := New(Config{})
	if err != nil {
		panic(fmt.Sprintf("default policy: %v", err))
	}
	return p
}

// New compiles every constraint up front.
func New(cfg Config) (*Policy, error) {
	allowed := cfg.AllowedStatements
	if len(allowed) == 0 {
		allowed = DefaultAllowedStatements
	}

	p := &Policy{
		allowed:     make(map[string]bool, len(allowed)),
		constraints: make(map[string]cel.Program, len(cfg.Constraints)),
		sources:     make(map[string]string, len(cfg.Constraints)),
	}
	for _, kw := range allowed {
		p.allowed[strings.ToUpper(strings.TrimSpace(kw))] = true
	}

	if len(cfg.Constraints) == 0 {
		return p, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("args", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	for op, expr := range cfg.Constraints {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("failed to compile CEL for %s: %w", op, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
			return nil, fmt.Errorf("constraint for %s must return a boolean, got %s", op, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to create CEL program for %s: %w", op, err)
		}
		p.constraints[op] = prg
		p.sources[op] = expr
	}
	return p, nil
}

// Allowed returns the accepted statement keywords, sorted.
func (p *Policy) Allowed() []string {
	out := make([]string, 0, len(p.allowed))
	for kw := range p.allowed {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// CheckStatement accepts exactly one statement whose leading keyword is
// allowed.
func (p *Policy) CheckStatement(query string) error {
	switch n := StatementCount(query); {
	case n == 0:
		return ErrEmptyStatement
	case n > 1:
		return fmt.Errorf("%w, got %d", ErrMultipleStatements, n)
	}

	kw := Keyword(query)
	if !p.allowed[kw] {
		return fmt.Errorf("%w: %s", ErrStatementNotAllowed, kw)
	}
	return nil
}

// CheckArguments evaluates the constraint configured for op, if any.
func (p *Policy) CheckArguments(op string, args map[string]any) error {
	prg, ok := p.constraints[op]
	if !ok {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	out, _, err := prg.Eval(map[string]any{
		"args": args,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to evaluate %q: %v", ErrConstraintRejected, p.sources[op], err)
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return fmt.Errorf("%w: %q did not return a boolean: got %T", ErrConstraintRejected, p.sources[op], out.Value())
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrConstraintRejected, p.sources[op])
	}
	return nil
}
