package linker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ohowland/wadf_core/internal/pkg/record"
)

// ErrArgument is returned when an operation argument has the wrong type.
var ErrArgument = errors.New("invalid argument")

// ErrUnknownOperation is returned by Invoke for an operation the linker does not expose.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is a linker operation invoked with positional arguments, the way
// the web service and scripted sequences call them.
type Operation func(ctx context.Context, args []interface{}) (interface{}, error)

// Linker is implemented by every device linker.
type Linker interface {
	PID() uuid.UUID
	Class() string
	Mode() Mode
	SwitchMode(Mode)
	Running() bool
	Record() *record.Record
	Operations() map[string]Operation
}

// Perform invokes the operation named op on l.
func Perform(ctx context.Context, l Linker, op string, args []interface{}) (interface{}, error) {
	f, ok := l.Operations()[op]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", l.Class(), op, ErrUnknownOperation)
	}
	return f(ctx, args)
}

func arg(args []interface{}, i int) (interface{}, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("argument %d: %w", i, ErrArity)
	}
	return args[i], nil
}

// BoolArg returns args[i] as a bool. Numbers are true when non-zero.
func BoolArg(args []interface{}, i int) (bool, error) {
	v, err := arg(args, i)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case int:
		return b != 0, nil
	case float64:
		return b != 0, nil
	}
	return false, fmt.Errorf("argument %d: %T is not a bool: %w", i, v, ErrArgument)
}

// StringArg returns args[i] as a string.
func StringArg(args []interface{}, i int) (string, error) {
	v, err := arg(args, i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %d: %T is not a string: %w", i, v, ErrArgument)
	}
	return s, nil
}

// FloatArg returns args[i] as an optional float. A missing or nil argument
// yields nil.
func FloatArg(args []interface{}, i int) (*float64, error) {
	if i >= len(args) || args[i] == nil {
		return nil, nil
	}
	switch f := args[i].(type) {
	case float64:
		return &f, nil
	case *float64:
		return f, nil
	case int:
		v := float64(f)
		return &v, nil
	}
	return nil, fmt.Errorf("argument %d: %T is not a number: %w", i, args[i], ErrArgument)
}
