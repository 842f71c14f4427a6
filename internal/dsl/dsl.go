// Package dsl implements the policy condition grammar used by the
// Verification Engine (internal/verify): equality and inequality on strings
// and numbers, numeric comparisons, logical and/or/not, and ctx.<field>
// lookups with type coercion. A missing field makes the surrounding
// condition false, never an error: the grammar is fail-safe by
// construction so a malformed or partially-populated context can never
// abort policy evaluation.
package dsl

import (
	"fmt"
	"sync"
)

// Context is the evaluation environment a compiled expression runs against.
// Field paths are resolved from a nested map, e.g. ctx.session.cost looks up
// m["session"].(map[string]any)["cost"].
type Context map[string]any

func (c Context) lookup(path []string) Value {
	var cur any = map[string]any(c)
	for _, key := range path[1:] { // path[0] is always the literal "ctx"
		m, ok := cur.(map[string]any)
		if !ok {
			return nullValue()
		}
		v, ok := m[key]
		if !ok {
			return nullValue()
		}
		cur = v
	}
	return toValue(cur)
}

func toValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return nullValue()
	case bool:
		return boolValue(x)
	case string:
		return stringValue(x)
	case float64:
		return numberValue(x)
	case float32:
		return numberValue(float64(x))
	case int:
		return numberValue(float64(x))
	case int32:
		return numberValue(float64(x))
	case int64:
		return numberValue(float64(x))
	case uint:
		return numberValue(float64(x))
	case uint64:
		return numberValue(float64(x))
	default:
		return nullValue()
	}
}

// Expression is a compiled condition, safe for concurrent evaluation and
// intended to be cached by the caller (see verify.Engine's policy registry).
type Expression struct {
	source string
	root   node
}

// Source returns the original expression text.
func (e *Expression) Source() string { return e.source }

// Compile parses expr into an Expression. Compile is the only place parsing
// errors surface; Evaluate itself never returns an error.
func Compile(expr string) (*Expression, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	root, err := parse(toks)
	if err != nil {
		return nil, fmt.Errorf("dsl: parse %q: %w", expr, err)
	}
	return &Expression{source: expr, root: root}, nil
}

// Evaluate runs the compiled expression against ctx. It never panics: any
// unexpected runtime condition (which should be unreachable given Compile
// succeeded) is recovered and treated as a non-match.
func (e *Expression) Evaluate(ctx Context) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return e.root.eval(ctx).truthy()
}

// cache is a simple compile-once-per-source cache: each policy's condition
// is compiled exactly once at load time rather than per-evaluation.
type cache struct {
	mu    sync.RWMutex
	items map[string]*Expression
}

// NewCache creates an empty expression cache.
func NewCache() *cache {
	return &cache{items: make(map[string]*Expression)}
}

// CompileCached returns a cached Expression for expr, compiling and storing
// it on first use.
func (c *cache) CompileCached(expr string) (*Expression, error) {
	c.mu.RLock()
	if e, ok := c.items[expr]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	e, err := Compile(expr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items[expr] = e
	c.mu.Unlock()
	return e, nil
}
