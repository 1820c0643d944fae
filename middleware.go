package apdo

import (
	"context"
	"database/sql"
)

type QueryContext struct {
	// Type 声明查询类型 即 SELECT, UPDATE, DELETE, INSERT 和 RAW
	Type string

	// SQL 渲染完成的语句文本和位置参数
	// 中间件看到的就是要发给驱动的最终形态
	SQL  string
	Args []any

	// Table 目标表名, 原生语句为空
	Table string
}

type Middleware func(next Handler) Handler

type Handler func(ctx context.Context, qc *QueryContext) *QueryResult

type QueryResult struct {
	// Rows 查询语句的游标, 写语句为nil
	Rows *sql.Rows

	// Result 写语句的执行结果
	Result sql.Result

	Err error
}
