package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attributes for escalation telemetry.
var (
	AttrOperation = attribute.Key("governor.operation")

	AttrDocumentID          = attribute.Key("governor.document.id")
	AttrConstitutionVersion = attribute.Key("governor.constitution.version")

	AttrEscalationLevel = attribute.Key("governor.escalation.level")
	AttrRecurrenceCount = attribute.Key("governor.recurrence.count")
	AttrRiskDomain      = attribute.Key("governor.risk.domain")

	AttrOracleOutcome  = attribute.Key("governor.oracle.outcome")
	AttrOracleEligible = attribute.Key("governor.oracle.eligible")

	AttrActionType = attribute.Key("governor.action.type")
)

// EvaluationAttrs builds the attributes of one evaluation span.
func EvaluationAttrs(documentID, constitutionVersion string, recurrence int, domain string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrConstitutionVersion.String(constitutionVersion),
		AttrRecurrenceCount.Int(recurrence),
		AttrRiskDomain.String(domain),
	}
	if documentID != "" {
		attrs = append(attrs, AttrDocumentID.String(documentID))
	}
	return attrs
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus marks the current span failed when err is non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
