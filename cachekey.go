package apdo

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// 两个互相独立的key空间
// 语句级: (SQL文本, 参数列表, 取数形态) => 整个结果集
// 行级:   (表名, 主键值, 选择的列, 取数形态) => 单行
//
// 行级key包含当前语句的列选择和取数形态
// 换一组列缓存过的行在这里就是未命中, 宁可miss也不返回形状不对的行

type statementKeyMaterial struct {
	SQL   string `msgpack:"sql"`
	Args  []any  `msgpack:"args"`
	Shape string `msgpack:"shape"`
}

func statementKey(query string, args []any, shape Shape) (string, error) {
	data, err := msgpack.Marshal(statementKeyMaterial{
		SQL:   query,
		Args:  args,
		Shape: shape.descriptor(),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s:%016x", xxhash.Sum64(data)), nil
}

type rowKeyMaterial struct {
	Table   string `msgpack:"table"`
	Key     any    `msgpack:"key"`
	Columns string `msgpack:"columns"`
	Shape   string `msgpack:"shape"`
}

func rowKey(table string, pk any, columns string, shape Shape) (string, error) {
	data, err := msgpack.Marshal(rowKeyMaterial{
		Table:   table,
		Key:     pk,
		Columns: columns,
		Shape:   shape.descriptor(),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("r:%016x", xxhash.Sum64(data)), nil
}

// resultPayload 是进缓存的可移植形态
// 统一存列序加行映射, 读出来再按形态整形
// 这样本地缓存和远程缓存走同一条路, 形态跨缓存往返不丢失
type resultPayload struct {
	Cols []string         `msgpack:"cols"`
	Rows []map[string]any `msgpack:"rows"`
}

func encodePayload(cols []string, rows []map[string]any) ([]byte, error) {
	return msgpack.Marshal(resultPayload{Cols: cols, Rows: rows})
}

func decodePayload(val any) (*resultPayload, bool) {
	data, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	var p resultPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func encodeRowPayload(row map[string]any) ([]byte, error) {
	return msgpack.Marshal(row)
}

func decodeRowPayload(val any) (map[string]any, bool) {
	data, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	var m map[string]any
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}
