package apdo

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"

	"github.com/makryl/apdo/internal/errs"
)

// FetchKind 是封闭的取数形态枚举
// 形态参与缓存key的推导, 缓存命中返回的结果和新查一样的形态
type FetchKind uint8

const (
	// FetchAssoc 每行一个列名到值的映射
	FetchAssoc FetchKind = iota
	// FetchObject 每行一个指定类型的结构体实例
	FetchObject
	// FetchColumn 单列的值列表
	FetchColumn
	// FetchTuple 每行一个按列序排列的元组
	FetchTuple
	// FetchPairs 整个结果集折叠成键值对
	FetchPairs
)

type Shape struct {
	Kind FetchKind

	// Target Object形态的目标结构体类型, 其他形态为nil
	Target reflect.Type
}

func Assoc() Shape {
	return Shape{Kind: FetchAssoc}
}

// ObjectOf prototype 传目标结构体的一级指针, 如 &Fruit{}
func ObjectOf(prototype any) Shape {
	return Shape{
		Kind:   FetchObject,
		Target: reflect.TypeOf(prototype),
	}
}

// descriptor 参与缓存key推导的形态描述
func (s Shape) descriptor() string {
	switch s.Kind {
	case FetchAssoc:
		return "assoc"
	case FetchObject:
		return "object:" + s.Target.String()
	case FetchColumn:
		return "column"
	case FetchTuple:
		return "tuple"
	case FetchPairs:
		return "pairs"
	}
	return fmt.Sprintf("kind-%d", s.Kind)
}

// scanMaps 把游标里的全部行读成列名到值的映射
// 用 rows.Columns 解决 select 的列顺序问题
func scanMaps(rows *sql.Rows) ([]string, []map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var result []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			m[col] = normalizeValue(vals[i])
		}
		result = append(result, m)
	}
	return cols, result, rows.Err()
}

// 驱动返回的文本列是[]byte, 统一转成string
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// decodeObject 从列值映射构造目标结构体实例
// 缓存命中时也走这条路, 所以输入是映射而不是游标
func (c *Conn) decodeObject(m map[string]any, target reflect.Type) (any, error) {
	entity := reflect.New(target.Elem())
	meta, err := c.registry.Get(entity.Interface())
	if err != nil {
		return nil, err
	}
	elem := entity.Elem()
	for col, val := range m {
		fd, ok := meta.ColumnMap[col]
		if !ok {
			return nil, errs.NewErrUnknownColumn(col)
		}
		fv, err := convertValue(val, fd.Type)
		if err != nil {
			return nil, err
		}
		elem.Field(fd.Index).Set(fv)
	}
	return entity.Interface(), nil
}

// convertValue 驱动和缓存给的值类型五花八门, 这里统一转到目标字段类型
func convertValue(val any, typ reflect.Type) (reflect.Value, error) {
	if val == nil {
		return reflect.Zero(typ), nil
	}

	// sql.Scanner 优先, 覆盖 sql.NullString 这类字段
	if reflect.PointerTo(typ).Implements(scannerType) {
		dst := reflect.New(typ)
		if err := dst.Interface().(sql.Scanner).Scan(val); err != nil {
			return reflect.Value{}, err
		}
		return dst.Elem(), nil
	}

	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(typ) {
		return rv, nil
	}
	// 数值之间放心转, 字符串另走解析, 避免 int64 -> string 的rune转换陷阱
	if isNumericKind(rv.Kind()) && isNumericKind(typ.Kind()) {
		return rv.Convert(typ), nil
	}
	if typ.Kind() == reflect.String && rv.Kind() != reflect.String {
		return reflect.ValueOf(fmt.Sprint(val)), nil
	}

	// 数据库查询出来的数据很多驱动返回的都是文本
	if s, ok := val.(string); ok {
		switch typ.Kind() {
		case reflect.String:
			return reflect.ValueOf(s), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(n).Convert(typ), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(n).Convert(typ), nil
		case reflect.Float32, reflect.Float64:
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(n).Convert(typ), nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(b), nil
		}
	}
	return reflect.Value{}, errs.NewErrUnsupportedValue(val)
}

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// toInt64 Count 等标量结果的整数化
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case nil:
		return 0, nil
	}
	return 0, errs.NewErrUnsupportedValue(v)
}
