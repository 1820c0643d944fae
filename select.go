package apdo

import (
	"context"
	"strings"

	"github.com/makryl/apdo/internal/errs"
)

// FetchAll 渲染并执行SELECT, 返回关联映射形态的行
// 结果可能为空, 不会是nil错误语义
func (s *Statement) FetchAll(ctx context.Context) ([]*Row, error) {
	res, err := s.fetchShaped(ctx, Assoc())
	if err != nil {
		return nil, err
	}
	rows := res.([]*Row)
	if rows == nil {
		rows = []*Row{}
	}
	return rows, nil
}

// FetchOne LIMIT 1 后取第一行, 没有数据返回nil
func (s *Statement) FetchOne(ctx context.Context) (*Row, error) {
	rows, err := s.Limit(1).FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchObjects 每行解码成 prototype 指向的结构体类型的实例
func (s *Statement) FetchObjects(ctx context.Context, prototype any) ([]any, error) {
	res, err := s.fetchShaped(ctx, ObjectOf(prototype))
	if err != nil {
		return nil, err
	}
	return res.([]any), nil
}

// FetchColumn 单列的值列表
func (s *Statement) FetchColumn(ctx context.Context, col string) ([]any, error) {
	s.columns = []string{col}
	res, err := s.fetchShaped(ctx, Shape{Kind: FetchColumn})
	if err != nil {
		return nil, err
	}
	return res.([]any), nil
}

// FetchRow 第一行按列序排列的元组, 没有数据返回nil
func (s *Statement) FetchRow(ctx context.Context, cols ...string) ([]any, error) {
	if len(cols) > 0 {
		s.columns = cols
	}
	s.Limit(1)
	res, err := s.fetchShaped(ctx, Shape{Kind: FetchTuple})
	if err != nil {
		return nil, err
	}
	tuples := res.([][]any)
	if len(tuples) == 0 {
		return nil, nil
	}
	return tuples[0], nil
}

// FetchCell 第一行的单个标量, 没有数据返回nil
func (s *Statement) FetchCell(ctx context.Context, col string) (any, error) {
	row, err := s.FetchRow(ctx, col)
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, nil
	}
	return row[0], nil
}

// FetchPairs 整个结果集折叠成键值对
// valueCol和keyCol传空都回退到主键
// Go的map不保序, 结果集里的顺序在这里不可观测
func (s *Statement) FetchPairs(ctx context.Context, valueCol, keyCol string) (map[string]any, error) {
	pk := s.primaryKey()[0]
	if keyCol == "" {
		keyCol = pk
	}
	if valueCol == "" {
		valueCol = pk
	}
	if keyCol == valueCol {
		s.columns = []string{keyCol}
	} else {
		s.columns = []string{keyCol, valueCol}
	}
	res, err := s.fetchShaped(ctx, Shape{Kind: FetchPairs})
	if err != nil {
		return nil, err
	}
	return res.(map[string]any), nil
}

// FetchPage 1开头的页码分页, 页码小于等于1都当第1页
// 必须先设置Limit, 否则页大小无从谈起
func (s *Statement) FetchPage(ctx context.Context, page int) ([]*Row, error) {
	if s.limit <= 0 {
		return nil, errs.ErrPageWithoutLimit
	}
	if page < 1 {
		page = 1
	}
	s.offset = s.limit * (page - 1)
	return s.FetchAll(ctx)
}

// Count SELECT COUNT(*), 忽略分组/排序/分页, where照常生效
// 只吃语句级缓存, 永远不进行级缓存
func (s *Statement) Count(ctx context.Context) (int64, error) {
	s.conn.lastStatement.Store(s)
	if s.nothing {
		return 0, nil
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.table == "" {
		return 0, errs.ErrNoTable
	}

	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*)\nFROM ")
	sb.WriteString(s.table)
	if s.where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(s.where)
	}
	query := sb.String()
	args := make([]any, 0, len(s.joinArgs)+len(s.whereArgs))
	args = append(args, s.joinArgs...)
	args = append(args, s.whereArgs...)

	shape := Shape{Kind: FetchColumn}
	cacheable := s.conn.cache != nil
	var key string
	if cacheable {
		var err error
		key, err = statementKey(query, args, shape)
		if err != nil {
			return 0, err
		}
		if val, err := s.conn.cache.Get(ctx, key); err == nil {
			if p, ok := decodePayload(val); ok {
				s.conn.cachedCount.Add(1)
				return countFromMaps(p.Cols, p.Rows)
			}
		}
	}

	rows, err := s.conn.queryRows(ctx, &QueryContext{
		Type:  "SELECT",
		SQL:   query,
		Args:  args,
		Table: s.table,
	})
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	cols, maps, err := scanMaps(rows)
	if err != nil {
		return 0, err
	}
	if cacheable {
		if data, err := encodePayload(cols, maps); err == nil {
			_ = s.conn.cache.Set(ctx, key, data)
		}
	}
	return countFromMaps(cols, maps)
}

func countFromMaps(cols []string, maps []map[string]any) (int64, error) {
	if len(maps) == 0 || len(cols) == 0 {
		return 0, nil
	}
	return toInt64(maps[0][cols[0]])
}
