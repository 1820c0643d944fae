package apdo

import (
	"context"

	"github.com/makryl/apdo/internal/errs"
	"github.com/makryl/apdo/model"
)

// Row 一条取出来的或待插入的记录
//
// 引用槽由解析器填充: 一对一是单个Row, 一对多是有序的Row列表
// 行与行之间用共享的 *Row 连接, 连接后改一侧另一侧立刻可见
type Row struct {
	conn *Conn
	meta *model.Table

	data map[string]any

	refOne  map[string]*Row
	refMany map[string][]*Row

	// fresh 新建还没落库
	fresh bool
}

// NewRow 手工创建一条新记录, Save时走INSERT
func NewRow(conn *Conn, table string) *Row {
	return &Row{
		conn:  conn,
		meta:  conn.tableMeta(table),
		data:  make(map[string]any, 8),
		fresh: true,
	}
}

func newFetchedRow(conn *Conn, meta *model.Table, data map[string]any) *Row {
	if data == nil {
		data = make(map[string]any, 8)
	}
	return &Row{
		conn: conn,
		meta: meta,
		data: data,
	}
}

func (r *Row) Table() string {
	if r.meta == nil {
		return ""
	}
	return r.meta.Name
}

func (r *Row) Get(col string) any {
	return r.data[col]
}

func (r *Row) Lookup(col string) (any, bool) {
	v, ok := r.data[col]
	return v, ok
}

func (r *Row) Set(col string, val any) {
	r.data[col] = val
}

func (r *Row) Has(col string) bool {
	_, ok := r.data[col]
	return ok
}

// Data 返回底层映射本身, 不是拷贝
func (r *Row) Data() map[string]any {
	return r.data
}

// Ref 一对一引用槽, 没解析过或没配上返回nil
func (r *Row) Ref(name string) *Row {
	return r.refOne[name]
}

// Refs 一对多引用槽
// 解析过但没有孩子时是空列表, 没解析过是nil, 两者可区分
func (r *Row) Refs(name string) []*Row {
	return r.refMany[name]
}

func (r *Row) setRef(name string, row *Row) {
	if r.refOne == nil {
		r.refOne = make(map[string]*Row, 4)
	}
	r.refOne[name] = row
}

func (r *Row) addRef(name string, row *Row) {
	if r.refMany == nil {
		r.refMany = make(map[string][]*Row, 4)
	}
	r.refMany[name] = append(r.refMany[name], row)
}

func (r *Row) initRefs(name string) {
	if r.refMany == nil {
		r.refMany = make(map[string][]*Row, 4)
	}
	if r.refMany[name] == nil {
		r.refMany[name] = []*Row{}
	}
}

// Same 主键值相等即同一条记录
// 解析器的身份判定就是这个, 不是结构相等
func (r *Row) Same(other *Row) bool {
	if other == nil || r.meta == nil || other.meta == nil {
		return false
	}
	if r.meta.Name != other.meta.Name {
		return false
	}
	for _, col := range r.meta.PrimaryKey {
		a, aok := r.Lookup(col)
		b, bok := other.Lookup(col)
		if !aok || !bok || keyOf(a) != keyOf(b) {
			return false
		}
	}
	return len(r.meta.PrimaryKey) > 0
}

// PrimaryKey 按元数据列序返回主键值, 缺列报错
func (r *Row) PrimaryKey() ([]any, error) {
	return r.pkeyValues()
}

func (r *Row) pkeyValues() ([]any, error) {
	vals := make([]any, 0, len(r.meta.PrimaryKey))
	for _, col := range r.meta.PrimaryKey {
		v, ok := r.Lookup(col)
		if !ok {
			return nil, errs.NewErrUnknownColumn(col)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// Save 新记录INSERT, 已有记录按主键UPDATE
// 表上挂了校验器会先跑校验, 有硬失败就整体不写
func (r *Row) Save(ctx context.Context) error {
	vals := r.data
	if v, ok := r.conn.validators[r.meta.Name]; ok {
		var err error
		vals, err = v.Apply(r)
		if err != nil {
			return err
		}
	}

	if r.fresh {
		id, err := r.conn.Table(r.meta.Name).Insert(ctx, vals)
		if err != nil {
			return err
		}
		if r.meta.Simple() && id != 0 && !r.Has(r.meta.Pkey()) {
			r.Set(r.meta.Pkey(), id)
		}
		r.fresh = false
		return nil
	}

	pk, err := r.pkeyValues()
	if err != nil {
		return err
	}
	// 主键列不进SET
	update := make(map[string]any, len(vals))
	for col, v := range vals {
		update[col] = v
	}
	for _, col := range r.meta.PrimaryKey {
		delete(update, col)
	}
	stmt := r.conn.Table(r.meta.Name)
	if r.meta.Simple() {
		stmt.Key(pk[0])
	} else {
		stmt.Key(pk)
	}
	return stmt.Update(ctx, update)
}

// Delete 按主键删除
func (r *Row) Delete(ctx context.Context) error {
	pk, err := r.pkeyValues()
	if err != nil {
		return err
	}
	stmt := r.conn.Table(r.meta.Name)
	if r.meta.Simple() {
		stmt.Key(pk[0])
	} else {
		stmt.Key(pk)
	}
	return stmt.Delete(ctx)
}
