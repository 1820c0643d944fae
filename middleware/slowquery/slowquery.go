package slowquery

import (
	"context"
	"time"

	"github.com/makryl/apdo"
)

type MiddlewareBuilder struct {
	// 存在问题, SQL参数存在敏感数据不应该被打印出来
	logFunc func(query string, args []any)

	// 慢查询阈值, 设置需要考虑公司实际情况, 如100ms
	threshold time.Duration
}

func NewMiddlewareBuilder(threshold time.Duration, fn func(query string, args []any)) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		logFunc:   fn,
		threshold: threshold,
	}
}

func (m MiddlewareBuilder) Build() apdo.Middleware {
	return func(next apdo.Handler) apdo.Handler {
		return func(ctx context.Context, qc *apdo.QueryContext) *apdo.QueryResult {
			startTime := time.Now()
			defer func() {
				duration := time.Since(startTime)
				// 不是慢查询
				if duration <= m.threshold {
					return
				}
				if m.logFunc != nil {
					m.logFunc(qc.SQL, qc.Args)
				}
			}()
			return next(ctx, qc)
		}
	}
}
