package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// 警告は処理を止めずに報告する。sink の優先順位は zerolog 関数 > handler。
var (
	warnMu      sync.Mutex
	warnHandler = defaultWarnHandler
	zerologWarn func(error)
)

func defaultWarnHandler(w error) {
	log.Printf("gomachine-warning: %v\n", w)
}

// SetWarningHandler replaces the fallback sink used when no zerolog
// function is installed. nil silences warnings.
//
//	errors.SetWarningHandler(func(w error) {})
func SetWarningHandler(handler func(w error)) {
	warnMu.Lock()
	warnHandler = handler
	warnMu.Unlock()
}

// SetZerologWarnFunc installs the structured sink. pkg/log registers one in
// its init; nil falls back to the handler.
func SetZerologWarnFunc(fn func(warning error)) {
	warnMu.Lock()
	zerologWarn = fn
	warnMu.Unlock()
}

// Warn reports w to the active sink.
func Warn(w error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	switch {
	case zerologWarn != nil:
		zerologWarn(w)
	case warnHandler != nil:
		warnHandler(w)
	}
}

// ConvergenceWarning: 反復が上限に達しても収束条件を満たさなかった
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	head := fmt.Sprintf("%s failed to converge after %d iterations", w.Algorithm, w.Iterations)
	if w.Message == "" {
		return head + ". Consider increasing iters or adjusting the learning rate."
	}
	return head + ": " + w.Message
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("detail", w.Message)
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning is raised when a metric has a zero denominator,
// e.g. precision with no positive predictions. Result is the value returned
// instead.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %g due to %s", w.Metric, w.Result, w.Condition)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}
