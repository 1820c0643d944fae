package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/makryl/apdo"
)

type MiddlewareBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
}

func (m MiddlewareBuilder) Build() apdo.Middleware {
	vector := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:      m.Name,
		Subsystem: m.Subsystem,
		Namespace: m.Namespace,
		Help:      m.Help,

		// 设置指标 如 0.5: 0.01 0.5是一个指标，0.01是一个误差值，表示0.5上下0.01 即误差范围为 0.49-0.51
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{
		"type",  // 语句类型 SELECT/INSERT/UPDATE/DELETE/RAW
		"table", // 目标表
	})

	prometheus.MustRegister(vector)

	return func(next apdo.Handler) apdo.Handler {
		return func(ctx context.Context, qc *apdo.QueryContext) *apdo.QueryResult {
			startTime := time.Now()
			defer func() {
				duration := time.Since(startTime).Milliseconds()
				vector.WithLabelValues(qc.Type, qc.Table).Observe(float64(duration))
			}()
			return next(ctx, qc)
		}
	}
}
