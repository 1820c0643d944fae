package querylog

import (
	"context"

	"go.uber.org/zap"

	"github.com/makryl/apdo"
)

// MiddlewareBuilder 把每条将要执行的语句打到zap
// 注意: SQL参数可能带敏感数据, 生产环境慎开参数打印
type MiddlewareBuilder struct {
	log      *zap.Logger
	withArgs bool
}

func NewMiddlewareBuilder(log *zap.Logger) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		log: log,
	}
}

// WithArgs 连参数一起打印
func (m *MiddlewareBuilder) WithArgs() *MiddlewareBuilder {
	m.withArgs = true
	return m
}

func (m MiddlewareBuilder) Build() apdo.Middleware {
	return func(next apdo.Handler) apdo.Handler {
		return func(ctx context.Context, qc *apdo.QueryContext) *apdo.QueryResult {
			fields := []zap.Field{
				zap.String("type", qc.Type),
				zap.String("table", qc.Table),
			}
			if m.withArgs {
				fields = append(fields, zap.Any("args", qc.Args))
			}
			m.log.Debug(qc.SQL, fields...)
			return next(ctx, qc)
		}
	}
}
