package dispatch

import (
	"context"

	"github.com/go-viper/mapstructure/v2"

	apperrors "relay/pkg/errors"
	"relay/pkg/models"
)

// Typed adapts a handler that wants its arguments as a concrete type. The
// envelope's decoded body is bound into T with weak type coercion, so a JSON
// body decoded to map[string]any lands in struct fields by `mapstructure`
// tag or field name.
//
// Binding failures are declared handler errors: the payload shape is wrong
// for this handler, which is an expected-but-exceptional outcome.
func Typed[T any](fn func(ctx context.Context, env *models.Envelope, args T) (*Result, error)) HandlerFunc {
	return func(ctx context.Context, env *models.Envelope) (*Result, error) {
		var args T

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &args,
			WeaklyTypedInput: true,
			TagName:          "mapstructure",
		})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrHandler)
		}

		if err := decoder.Decode(env.DecodedBody); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrHandler)
		}

		return fn(ctx, env, args)
	}
}
