// Package errors はgomachineのエラー型と警告を提供します。
// エラーはcockroachdb/errorsでスタックトレースを持ち、
// zerologのイベントに構造化フィールドとして埋め込めます。
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// errorf formats "gomachine: <op>: <msg>", the shape shared by every error
// type in this package.
func errorf(op, format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if op == "" {
		return "gomachine: " + msg
	}
	return "gomachine: " + op + ": " + msg
}

// NotFittedError: Fit 前に Predict や Transform が呼ばれた
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return errorf(e.ModelName, "%s called before Fit", e.Method)
}

func (e *NotFittedError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "NotFittedError").Str("model_name", e.ModelName).Str("method", e.Method)
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch. Axis 0 counts rows, axis 1
// counts columns (features).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) unit() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return errorf(e.Op, "expected %d %s, got %d", e.Expected, e.unit(), e.Got)
}

func (e *DimensionError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "DimensionError").
		Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("axis", e.unit())
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError rejects a hyperparameter or config value.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return errorf("", "invalid %s=%v: %s", e.ParamName, e.Value, e.Reason)
}

func (e *ValidationError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値そのものが不正（空データ、範囲外のラベル等）
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string { return errorf(e.Op, "%s", e.Message) }

func (e *ValueError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "ValueError").Str("operation", e.Op).Str("message", e.Message)
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError wraps a cause (often a sentinel such as ErrSingularMatrix)
// with the operation and a short description.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return errorf(e.Op, "%s", e.Kind)
	}
	return errorf(e.Op, "%s: %v", e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

func (e *ModelError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "ModelError").Str("operation", e.Op).Str("kind", e.Kind)
	if e.Err != nil {
		ev.AnErr("cause", e.Err)
	}
}

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError は NaN/Inf を検出した操作と反復番号を持つ
type NumericalInstabilityError struct {
	Operation string
	Values    []float64 // 非有限値のみ
	Iteration int
}

// 表示する値の最大個数
const maxShownValues = 5

func (e *NumericalInstabilityError) Error() string {
	var sb strings.Builder
	for i, v := range e.Values {
		if i == maxShownValues {
			sb.WriteString(", ...")
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%.6g", v)
	}
	return errorf(e.Operation, "non-finite values at iteration %d [%s]", e.Iteration, sb.String())
}

func (e *NumericalInstabilityError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "NumericalInstabilityError").
		Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Int("bad_values", len(e.Values))
}

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// cockroachdb/errors の薄いラッパー

func Is(err, target error) bool { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }
func Wrap(err error, message string) error { return errors.Wrap(err, message) }
func Wrapf(err error, format string, args ...interface{}) error { return errors.Wrapf(err, format, args...) }
func New(message string) error { return errors.New(message) }
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }
func WithStack(err error) error { return errors.WithStack(err) }

// Sentinels. Compare with Is.
var (
	ErrEmptyData           = New("empty data")
	ErrSingularMatrix      = New("singular matrix")
	ErrNotPositiveDefinite = New("matrix is not positive definite")
)
