package apdo

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/makryl/apdo/internal/errs"
)

// Insert 一条或多条记录合成一个多行INSERT
// 列清单取自第一条记录(排序保证确定性), 各条记录的列集合一致由调用方保证
// 返回 last insert id, 复合主键或非自增主键下没有意义
func (s *Statement) Insert(ctx context.Context, values ...map[string]any) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if len(values) == 0 {
		return 0, errs.ErrInsertZeroRows
	}
	if s.table == "" {
		return 0, errs.ErrNoTable
	}

	// Golang中的map每一次遍历都是无序的, 列序必须显式固定
	cols := make([]string, 0, len(values[0]))
	for col := range values[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(s.table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(")\nVALUES ")
	args := make([]any, 0, len(values)*len(cols))
	for i, row := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, col := range cols {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte('?')
			args = append(args, row[col])
		}
		sb.WriteByte(')')
	}

	res, err := s.execWrite(ctx, "INSERT", sb.String(), args)
	if err != nil {
		return 0, err
	}
	// 驱动不支持或无自增主键时拿不到id, 不算错误
	id, idErr := res.LastInsertId()
	if idErr != nil {
		return 0, nil
	}
	return id, nil
}

// Update 空值映射是合法的空操作, 不清缓存不碰连接
// SET 参数排在已累积的 where 参数之前
func (s *Statement) Update(ctx context.Context, values map[string]any) error {
	if s.err != nil {
		return s.err
	}
	if len(values) == 0 {
		return nil
	}
	if s.table == "" {
		return errs.ErrNoTable
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(s.table)
	sb.WriteString("\nSET ")
	args := make([]any, 0, len(cols)+len(s.whereArgs))
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		sb.WriteString("=?")
		args = append(args, values[col])
	}
	if s.where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(s.where)
	}
	args = append(args, s.whereArgs...)

	_, err := s.execWrite(ctx, "UPDATE", sb.String(), args)
	return err
}

func (s *Statement) Delete(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	if s.table == "" {
		return errs.ErrNoTable
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(s.table)
	if s.where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(s.where)
	}
	_, err := s.execWrite(ctx, "DELETE", sb.String(), s.whereArgs)
	return err
}

// Execute 原封不动执行原生语句, 用于DDL和任意SQL
// 不取数, 不查缓存, 执行后整个缓存清掉
func (s *Statement) Execute(ctx context.Context) error {
	if s.raw == "" {
		return errs.ErrRawOnly
	}
	_, err := s.execWrite(ctx, "RAW", s.raw, s.rawArgs)
	return err
}

// execWrite 任何写语句都整库清缓存
// 清缓存不看执行结果, 多行写一半失败也不能留脏缓存
func (s *Statement) execWrite(ctx context.Context, typ, query string, args []any) (res sql.Result, err error) {
	s.conn.lastStatement.Store(s)
	defer func() {
		_ = s.conn.clearCache(ctx)
	}()
	return s.conn.execStmt(ctx, &QueryContext{
		Type:  typ,
		SQL:   query,
		Args:  args,
		Table: s.table,
	})
}
