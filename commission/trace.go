package commission

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/simmonsmd7/inkflow-sub000/commission")

// endSpan records the outcome of an engine operation. Client-side failures
// (validation, conflicts, missing rows) are not span errors.
func endSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case IsClientError(err) || IsConflict(err) || IsNotFound(err):
		span.SetAttributes(attribute.String("commission.outcome", outcomeOf(err)))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrNoRuleConfigured):
		return "no_rule"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case IsConflict(err):
		return "conflict"
	case IsNotFound(err):
		return "not_found"
	}
	return "invalid"
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
