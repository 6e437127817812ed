package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const dbTracerName = "github.com/geocoder89/taskhub/internal/repo"

// ObserveDB runs fn inside a client span named after op and records its
// latency and error class. A nil *Prom still traces but records no metrics.
func (p *Prom) ObserveDB(ctx context.Context, op string, fn func() error) error {
	_, span := otel.Tracer(dbTracerName).Start(ctx, "db "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.operation", op)),
	)
	defer span.End()

	start := time.Now()
	err := fn()

	status := "ok"
	if err != nil {
		status = "error"
		class := classifyDBErr(err)
		if class != "not_found" {
			span.RecordError(err)
			span.SetStatus(codes.Error, class)
		}
		if p != nil {
			p.DbErrorsTotal.WithLabelValues(op, class).Inc()
		}
	}
	if p != nil {
		p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}

	return err
}

func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "23503":
			return "foreign_key_violation"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no rows"):
		return "not_found"
	case strings.Contains(msg, "unique constraint"):
		return "unique_violation"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
