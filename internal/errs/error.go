package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNoTable = errors.New("apdo: 没有指定表名")

	// ErrCompositeKey 需要单列主键的场景传入了复合主键
	// 如: 行级缓存, Referrers 解析
	ErrCompositeKey = errors.New("apdo: 不支持复合主键")

	// ErrPageWithoutLimit FetchPage 必须先设置 Limit
	ErrPageWithoutLimit = errors.New("apdo: 分页查询必须先设置 Limit")

	ErrInsertZeroRows = errors.New("apdo: 插入0行数据")

	// ErrRawOnly Execute 只能执行原生SQL语句
	ErrRawOnly = errors.New("apdo: 只能执行原生SQL语句")

	// ErrSkipColumn 校验器返回该错误时, 该列不写入数据库, 不算失败
	ErrSkipColumn = errors.New("apdo: 跳过该列")
)

func NewErrInvalidRows(rows any) error {
	return fmt.Errorf("apdo: 非法的行集合类型 %T, 只支持 *Row 或 []*Row", rows)
}

func NewErrUnknownColumn(name string) error {
	return fmt.Errorf("apdo: 未知数据库列名 %s", name)
}

func NewErrInvalidTagContent(pair string) error {
	return fmt.Errorf("apdo: 非法标签值 %s", pair)
}

func NewErrPointerOnly(entity any) error {
	return fmt.Errorf("apdo: 只支持指向结构体的一级指针, 得到 %T", entity)
}

func NewErrUnsupportedValue(val any) error {
	return fmt.Errorf("apdo: 不支持的值类型 %T", val)
}

func NewErrKeyMismatch(cols int, vals int) error {
	return fmt.Errorf("apdo: 复合主键列数 %d 与值个数 %d 不匹配", cols, vals)
}
