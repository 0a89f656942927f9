// Package filter compiles CEL expressions into filter predicates over parsed
// envelopes, so handler routing can be driven by configuration.
package filter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"relay/pkg/models"
)

// Predicate matches the dispatch filter signature.
type Predicate func(ctx context.Context, env *models.Envelope) (bool, error)

type Compiler struct {
	env *cel.Env
}

// NewCompiler builds the CEL environment the expressions evaluate in. The
// decoded body is exposed as `body`, raw headers as `headers`.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("message_id", cel.StringType),
		cel.Variable("correlation_id", cel.StringType),
		cel.Variable("topic", cel.StringType),
		cel.Variable("content_type", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("body", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Compiler{env: env}, nil
}

// Validate checks an expression compiles and yields a bool.
func (c *Compiler) Validate(expression string) error {
	_, err := c.compile(expression)
	return err
}

// Compile turns a CEL expression into a reusable predicate. The program is
// built once; evaluation per message only binds the envelope variables.
func (c *Compiler) Compile(expression string) (Predicate, error) {
	ast, err := c.compile(expression)
	if err != nil {
		return nil, err
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return func(ctx context.Context, env *models.Envelope) (bool, error) {
		topic := ""
		if env.Raw != nil {
			topic = env.Raw.Topic
		}
		headers := env.Headers
		if headers == nil {
			headers = map[string]string{}
		}

		vars := map[string]interface{}{
			"message_id":     env.MessageID,
			"correlation_id": env.CorrelationID,
			"topic":          topic,
			"content_type":   env.ContentType,
			"headers":        headers,
			"body":           bodyValue(env.DecodedBody),
		}

		result, _, err := program.ContextEval(ctx, vars)
		if err != nil {
			return false, fmt.Errorf("failed to evaluate filter expression: %w", err)
		}

		matched, ok := result.Value().(bool)
		if !ok {
			return false, fmt.Errorf("filter expression returned %T, want bool", result.Value())
		}
		return matched, nil
	}, nil
}

func (c *Compiler) compile(expression string) (*cel.Ast, error) {
	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}
	return ast, nil
}

// bodyValue keeps CEL evaluation total: expressions index into `body`, so a
// nil or non-map body becomes an empty map instead of an eval error.
func bodyValue(decoded any) any {
	if decoded == nil {
		return map[string]any{}
	}
	if _, ok := decoded.([]byte); ok {
		return map[string]any{}
	}
	return decoded
}
