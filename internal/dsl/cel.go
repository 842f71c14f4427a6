package dsl

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELExpression is the optional advanced dialect: a full CEL expression,
// compiled once by CompileCEL and cached as a cel.Program. verify.Registry
// does not use it (it compiles every rule with the default grammar and
// does not read config.PolicyConfig.Dialect). The environment exposes a single "ctx" variable carrying
// the nested action/session context map, rather than individually
// declared fields, since conditions here reach into an arbitrarily
// nested context rather than a fixed set of top-level variables.
type CELExpression struct {
	source  string
	ast     *cel.Ast
	program cel.Program
}

var celEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		// A failure here means the cel-go environment itself is broken;
		// CompileCEL will surface it per-call instead of panicking at
		// package init.
		return
	}
	celEnv = env
}

// CompileCEL compiles a CEL expression that must evaluate to a bool.
func CompileCEL(expr string) (*CELExpression, error) {
	if celEnv == nil {
		return nil, fmt.Errorf("dsl: cel environment unavailable")
	}
	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: cel compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("dsl: cel expression %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: cel program %q: %w", expr, err)
	}
	return &CELExpression{source: expr, ast: ast, program: prg}, nil
}

// Evaluate runs the compiled CEL program against ctx, failing closed (false)
// on any runtime error rather than surfacing it to the caller.
func (e *CELExpression) Evaluate(ctx Context) bool {
	out, _, err := e.program.Eval(map[string]any{"ctx": map[string]any(ctx)})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false
	}
	return b
}

// Source returns the original CEL expression text.
func (e *CELExpression) Source() string { return e.source }
