package opentelemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/makryl/apdo"
)

const instrumentationName = "github.com/makryl/apdo/middleware/opentelemetry"

type MiddlewareBuilder struct {
	Tracer trace.Tracer
}

func (m MiddlewareBuilder) Build() apdo.Middleware {
	if m.Tracer == nil {
		m.Tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return func(next apdo.Handler) apdo.Handler {
		return func(ctx context.Context, qc *apdo.QueryContext) *apdo.QueryResult {
			// span name: SELECT-TABLE_NAME
			spanCtx, span := m.Tracer.Start(ctx, fmt.Sprintf("%s-%s", qc.Type, qc.Table))
			defer span.End()

			span.SetAttributes(attribute.String("sql", qc.SQL))
			// tracing这里没必要记录参数, 防止数据过大(如 blob), 防止敏感数据被记录到tracing(如 用户密码)
			span.SetAttributes(attribute.String("table", qc.Table))
			span.SetAttributes(attribute.String("component", "apdo"))

			res := next(spanCtx, qc)
			if res.Err != nil {
				span.RecordError(res.Err)
			}
			return res
		}
	}
}
