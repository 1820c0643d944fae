package apdo

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/makryl/apdo/internal/errs"
	"github.com/makryl/apdo/model"
)

// ResultHandler 取数后处理函数, 按注册顺序执行
// 每个都拿到并返回完整结果集, 不是逐行处理
type ResultHandler func(rows []*Row) ([]*Row, error)

// Query 渲染完成的SQL文本和按出现顺序排列的位置参数
type Query struct {
	SQL  string
	Args []any
}

// Statement 可变的语句构造器
// 链式配置调用都返回同一个构造器本身
//
// 参数顺序约定: join参数在前, where参数在后, having参数最后
// 渲染出来的问号次序和参数列表严格一致
type Statement struct {
	conn     *Conn
	defaults Defaults
	meta     *model.Table

	// raw 原生SQL, 只有 Conn.Statement 创建时才有
	raw     string
	rawArgs []any

	table      string
	columns    []string
	where      string
	whereArgs  []any
	joinArgs   []any
	groupBy    string
	having     string
	havingArgs []any
	orderBy    string
	limit      int
	offset     int

	// pkey 覆盖元数据里的主键
	pkey []string

	handlers []ResultHandler

	// nothing 为真时终端读操作直接短路成空结果
	// 不碰缓存也不碰连接
	nothing bool

	// err 链式配置中途出的错, 终端执行时才冒出来
	err error
}

// Table 重新指定目标表
func (s *Statement) Table(name string) *Statement {
	s.table = name
	s.meta = s.conn.tableMeta(name)
	return s
}

// Join 追加内连接, on里的参数排在全部where参数之前
func (s *Statement) Join(table string, on string, args ...any) *Statement {
	return s.join("JOIN", table, on, args)
}

func (s *Statement) LeftJoin(table string, on string, args ...any) *Statement {
	return s.join("LEFT JOIN", table, on, args)
}

func (s *Statement) join(kind, table, on string, args []any) *Statement {
	s.table += "\n" + kind + " " + table + " ON " + on
	s.joinArgs = append(s.joinArgs, args...)
	return s
}

// Where 与已有条件AND合并
// 合并时两侧都加括号, 避免优先级问题
func (s *Statement) Where(expr string, args ...any) *Statement {
	return s.addWhere(expr, args, false)
}

func (s *Statement) OrWhere(expr string, args ...any) *Statement {
	return s.addWhere(expr, args, true)
}

func (s *Statement) addWhere(expr string, args []any, or bool) *Statement {
	if s.where == "" {
		s.where = expr
	} else {
		op := " AND "
		if or {
			op = " OR "
		}
		s.where = "(" + s.where + ")" + op + "(" + expr + ")"
	}
	s.whereArgs = append(s.whereArgs, args...)
	return s
}

// Key 按主键约束
// 标量渲染成 col=?, 列表渲染成 col IN (?,?,...)
// 复合主键时value按列逐对展开, 全部AND
func (s *Statement) Key(value any) *Statement {
	return s.keyCondition(s.primaryKey(), value, false)
}

func (s *Statement) OrKey(value any) *Statement {
	return s.keyCondition(s.primaryKey(), value, true)
}

// KeyBy 指定列的Key约束
func (s *Statement) KeyBy(column string, value any) *Statement {
	return s.keyCondition([]string{column}, value, false)
}

func (s *Statement) OrKeyBy(column string, value any) *Statement {
	return s.keyCondition([]string{column}, value, true)
}

func (s *Statement) keyCondition(cols []string, value any, or bool) *Statement {
	expr, args, err := renderKey(cols, value)
	if err != nil {
		s.err = err
		return s
	}
	return s.addWhere(expr, args, or)
}

func renderKey(cols []string, value any) (string, []any, error) {
	if len(cols) == 0 {
		return "", nil, errs.ErrNoTable
	}
	if len(cols) == 1 {
		col := cols[0]
		if vals, ok := sliceValues(value); ok {
			var sb strings.Builder
			sb.WriteString(col)
			sb.WriteString(" IN (")
			for i := range vals {
				if i > 0 {
					sb.WriteByte(',')
				}
				sb.WriteByte('?')
			}
			sb.WriteByte(')')
			return sb.String(), vals, nil
		}
		return col + "=?", []any{value}, nil
	}

	// 复合主键: 值和列逐对配对, 每对各自按标量/列表渲染
	vals, ok := sliceValues(value)
	if !ok || len(vals) != len(cols) {
		return "", nil, errs.NewErrKeyMismatch(len(cols), len(vals))
	}
	var sb strings.Builder
	var args []any
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		expr, sub, err := renderKey([]string{col}, vals[i])
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(expr)
		args = append(args, sub...)
	}
	return sb.String(), args, nil
}

// sliceValues 区分标量和列表
// []byte按标量算, 它是一个值不是一组值
func sliceValues(value any) ([]any, bool) {
	if _, ok := value.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	vals := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		vals = append(vals, rv.Index(i).Interface())
	}
	return vals, true
}

func (s *Statement) GroupBy(expr string) *Statement {
	s.groupBy = expr
	return s
}

func (s *Statement) Having(expr string, args ...any) *Statement {
	s.having = expr
	s.havingArgs = append(s.havingArgs, args...)
	return s
}

func (s *Statement) OrderBy(expr string) *Statement {
	s.orderBy = expr
	return s
}

// AddOrderBy 在现有排序上追加一列
func (s *Statement) AddOrderBy(col string, desc bool) *Statement {
	if s.orderBy != "" {
		s.orderBy += ", "
	}
	s.orderBy += col
	if desc {
		s.orderBy += " DESC"
	}
	return s
}

func (s *Statement) Limit(n int) *Statement {
	s.limit = n
	return s
}

func (s *Statement) Offset(n int) *Statement {
	s.offset = n
	return s
}

// Columns 指定选择的列, 默认全部
func (s *Statement) Columns(cols ...string) *Statement {
	s.columns = cols
	return s
}

// PrimaryKey 覆盖语句使用的主键列
func (s *Statement) PrimaryKey(cols ...string) *Statement {
	s.pkey = cols
	return s
}

// ResultHandler 追加取数后处理函数
func (s *Statement) ResultHandler(fn ResultHandler) *Statement {
	s.handlers = append(s.handlers, fn)
	return s
}

// Nothing 标记语句为空操作
// 调用方已经知道操作是空的时候用, 如对空行集解析引用
func (s *Statement) Nothing() *Statement {
	s.nothing = true
	return s
}

func (s *Statement) primaryKey() []string {
	if len(s.pkey) > 0 {
		return s.pkey
	}
	if s.meta != nil && len(s.meta.PrimaryKey) > 0 {
		return s.meta.PrimaryKey
	}
	return []string{s.defaults.PrimaryKey}
}

func (s *Statement) columnsDescriptor() string {
	if len(s.columns) == 0 {
		return "*"
	}
	return strings.Join(s.columns, ", ")
}

// buildSelect SELECT渲染: 固定顺序逐段拼接, 每段一行
// 空段整段不输出
func (s *Statement) buildSelect() (*Query, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.raw != "" {
		return &Query{SQL: s.raw, Args: s.rawArgs}, nil
	}
	if s.table == "" {
		return nil, errs.ErrNoTable
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(s.columnsDescriptor())
	sb.WriteString("\nFROM ")
	sb.WriteString(s.table)
	if s.where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(s.where)
	}
	if s.groupBy != "" {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(s.groupBy)
	}
	if s.having != "" {
		sb.WriteString("\nHAVING ")
		sb.WriteString(s.having)
	}
	if s.orderBy != "" {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(s.orderBy)
	}
	if s.limit > 0 {
		sb.WriteString("\nLIMIT ")
		sb.WriteString(strconv.Itoa(s.limit))
	}
	if s.offset > 0 {
		sb.WriteString("\nOFFSET ")
		sb.WriteString(strconv.Itoa(s.offset))
	}
	return &Query{SQL: sb.String(), Args: s.buildArgs()}, nil
}

func (s *Statement) buildArgs() []any {
	total := len(s.joinArgs) + len(s.whereArgs) + len(s.havingArgs)
	if total == 0 {
		return nil
	}
	args := make([]any, 0, total)
	args = append(args, s.joinArgs...)
	args = append(args, s.whereArgs...)
	args = append(args, s.havingArgs...)
	return args
}

// fetchShaped 读路径的统一入口
// 先查语句级缓存, 命中就完全不碰连接, 处理函数照常执行
func (s *Statement) fetchShaped(ctx context.Context, shape Shape) (any, error) {
	s.conn.lastStatement.Store(s)
	if s.nothing {
		return s.shapeResult(shape, nil, nil)
	}

	q, err := s.buildSelect()
	if err != nil {
		return nil, err
	}

	cacheable := s.raw == "" && s.conn.cache != nil
	var key string
	if cacheable {
		key, err = statementKey(q.SQL, q.Args, shape)
		if err != nil {
			return nil, err
		}
		if val, err := s.conn.cache.Get(ctx, key); err == nil {
			if p, ok := decodePayload(val); ok {
				s.conn.cachedCount.Add(1)
				return s.shapeResult(shape, p.Cols, p.Rows)
			}
		}
	}

	rows, err := s.conn.queryRows(ctx, &QueryContext{
		Type:  "SELECT",
		SQL:   q.SQL,
		Args:  q.Args,
		Table: s.table,
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, maps, err := scanMaps(rows)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.storeCache(ctx, key, shape, cols, maps)
	}
	return s.shapeResult(shape, cols, maps)
}

// storeCache 语句级必存, 行级只在满足全部条件时存:
// 自动渲染的SELECT, 没有GROUP BY, 单列主键, 至少一行
func (s *Statement) storeCache(ctx context.Context, key string, shape Shape, cols []string, maps []map[string]any) {
	data, err := encodePayload(cols, maps)
	if err != nil {
		return
	}
	_ = s.conn.cache.Set(ctx, key, data)

	pk := s.primaryKey()
	if s.groupBy != "" || len(pk) != 1 || len(maps) == 0 {
		return
	}
	for _, m := range maps {
		pkVal, ok := m[pk[0]]
		if !ok || pkVal == nil {
			continue
		}
		rk, err := rowKey(s.table, keyOf(pkVal), s.columnsDescriptor(), shape)
		if err != nil {
			continue
		}
		if data, err := encodeRowPayload(m); err == nil {
			_ = s.conn.cache.Set(ctx, rk, data)
		}
	}
}

// shapeResult 按取数形态整形, Assoc形态上执行处理函数队列
func (s *Statement) shapeResult(shape Shape, cols []string, maps []map[string]any) (any, error) {
	switch shape.Kind {
	case FetchAssoc:
		rows := make([]*Row, 0, len(maps))
		for _, m := range maps {
			rows = append(rows, newFetchedRow(s.conn, s.meta, m))
		}
		var err error
		for _, h := range s.handlers {
			rows, err = h(rows)
			if err != nil {
				return nil, err
			}
		}
		return rows, nil
	case FetchObject:
		result := make([]any, 0, len(maps))
		for _, m := range maps {
			obj, err := s.conn.decodeObject(m, shape.Target)
			if err != nil {
				return nil, err
			}
			result = append(result, obj)
		}
		return result, nil
	case FetchColumn:
		result := make([]any, 0, len(maps))
		for _, m := range maps {
			if len(cols) == 0 {
				break
			}
			result = append(result, m[cols[0]])
		}
		return result, nil
	case FetchTuple:
		result := make([][]any, 0, len(maps))
		for _, m := range maps {
			tuple := make([]any, 0, len(cols))
			for _, col := range cols {
				tuple = append(tuple, m[col])
			}
			result = append(result, tuple)
		}
		return result, nil
	case FetchPairs:
		result := make(map[string]any, len(maps))
		for _, m := range maps {
			if len(cols) == 0 {
				break
			}
			key := stringify(m[cols[0]])
			if len(cols) > 1 {
				result[key] = m[cols[1]]
			} else {
				result[key] = m[cols[0]]
			}
		}
		return result, nil
	}
	return nil, errs.NewErrUnsupportedValue(shape.Kind)
}

// 键值对形态的key统一成字符串
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
