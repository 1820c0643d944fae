package apdo

import (
	"context"
	"reflect"

	"github.com/makryl/apdo/internal/errs"
	"github.com/makryl/apdo/model"
)

// 引用解析
//
// 两个对称的操作:
// Referrers 取"一"那侧: 一批水果行 => 它们各自的树
// References 取"多"那侧: 一批树行 => 各自的水果
//
// 两条路都保证: 空输入不发查询, 同一行永远不会取第二次,
// 配不上的行保持槽位原样, 这不是错误

type refOptions struct {
	// key 持有外键的那一侧的列名
	key string
	// pkey 被指向那一侧的主键列名
	pkey   string
	unique bool
}

type RefOption func(*refOptions)

// RefKey 覆盖持有外键的列名, 默认用reference槽名
func RefKey(col string) RefOption {
	return func(o *refOptions) {
		o.key = col
	}
}

// RefPkey 覆盖被指向侧的主键列名
func RefPkey(col string) RefOption {
	return func(o *refOptions) {
		o.pkey = col
	}
}

// Referrers 给一批A行取它们外键指向的B行(本语句的表), 并双向连接
//
// rows 是单个 *Row 或同构的 []*Row, 单行和单元素列表语义等价但类型上必须分开判
// referrer 挂在B行上指回A行集合的槽名, reference 挂在A行上指向B行的槽名
// A行的外键列默认就叫 reference, B的主键默认用本语句的主键
//
// 已经在行级缓存里的B行不会再查, 只把缺的键做一条 IN 查询
func (s *Statement) Referrers(ctx context.Context, rows any, referrer, reference string, opts ...RefOption) ([]*Row, error) {
	return s.referrers(ctx, rows, referrer, reference, false, opts)
}

// ReferrersUnique 一对一变体, B行上的referrer槽是单个Row
func (s *Statement) ReferrersUnique(ctx context.Context, rows any, referrer, reference string, opts ...RefOption) ([]*Row, error) {
	return s.referrers(ctx, rows, referrer, reference, true, opts)
}

func (s *Statement) referrers(ctx context.Context, rows any, referrer, reference string, unique bool, opts []RefOption) ([]*Row, error) {
	pk := s.primaryKey()
	if len(pk) != 1 {
		return nil, errs.ErrCompositeKey
	}
	o := refOptions{key: reference, pkey: pk[0], unique: unique}
	for _, opt := range opts {
		opt(&o)
	}

	list, err := normalizeRows(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		s.Nothing()
		return s.FetchAll(ctx)
	}

	// 按外键值建索引: 键 => 指着它的A行列表
	// 外键为空的行跳过, 保持槽位不设置
	index := make(map[any][]*Row, len(list))
	order := make([]any, 0, len(list))
	for _, a := range list {
		v, ok := a.Lookup(o.key)
		if !ok || v == nil {
			continue
		}
		k := keyOf(v)
		if _, seen := index[k]; !seen {
			order = append(order, k)
		}
		index[k] = append(index[k], a)
	}
	if len(order) == 0 {
		s.Nothing()
		return s.FetchAll(ctx)
	}

	// 行级缓存先挡一道, 把键分成已缓存和待查两组
	cached := make([]*Row, 0, len(order))
	missing := make([]any, 0, len(order))
	for _, k := range order {
		if s.conn.cache != nil {
			rk, err := rowKey(s.table, k, s.columnsDescriptor(), Assoc())
			if err == nil {
				if val, err := s.conn.cache.Get(ctx, rk); err == nil {
					if m, ok := decodeRowPayload(val); ok {
						cached = append(cached, newFetchedRow(s.conn, s.meta, m))
						continue
					}
				}
			}
		}
		missing = append(missing, k)
	}

	if len(missing) == 0 {
		// 全部命中缓存, 不发查询, 连接工作交给处理函数
		s.Nothing()
	} else {
		s.KeyBy(o.pkey, missing)
	}

	s.ResultHandler(func(fetched []*Row) ([]*Row, error) {
		result := make([]*Row, 0, len(fetched)+len(cached))
		link := func(b *Row) {
			result = append(result, b)
			pkVal, ok := b.Lookup(o.pkey)
			if !ok || pkVal == nil {
				return
			}
			for _, a := range index[keyOf(pkVal)] {
				a.setRef(reference, b)
				if o.unique {
					b.setRef(referrer, a)
				} else {
					b.addRef(referrer, a)
				}
			}
		}
		for _, b := range fetched {
			link(b)
		}
		for _, b := range cached {
			link(b)
		}
		return result, nil
	})

	return s.FetchAll(ctx)
}

// References 给一批A行取指向它们的B行(本语句的表), 并双向连接
//
// 方向和Referrers相反: A已经有主键, B靠外键列的 IN 查询取出
// B的外键列默认就叫 reference, A的主键默认用连接的默认主键名
//
// 这条路不走行级缓存: 查询是按B的外键驱动的, 不是按B的主键身份
func (s *Statement) References(ctx context.Context, rows any, referrer, reference string, opts ...RefOption) ([]*Row, error) {
	return s.references(ctx, rows, referrer, reference, false, opts)
}

// ReferencesUnique 一对一变体, A行上的referrer槽是单个Row
func (s *Statement) ReferencesUnique(ctx context.Context, rows any, referrer, reference string, opts ...RefOption) ([]*Row, error) {
	return s.references(ctx, rows, referrer, reference, true, opts)
}

func (s *Statement) references(ctx context.Context, rows any, referrer, reference string, unique bool, opts []RefOption) ([]*Row, error) {
	o := refOptions{key: reference, pkey: s.defaults.PrimaryKey, unique: unique}
	for _, opt := range opts {
		opt(&o)
	}

	list, err := normalizeRows(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		s.Nothing()
		return s.FetchAll(ctx)
	}

	// 先把每个A行的孩子槽置成空列表
	// 没有孩子的行拿到的是空集合, 不是缺失的属性
	index := make(map[any]*Row, len(list))
	order := make([]any, 0, len(list))
	for _, a := range list {
		if !o.unique {
			a.initRefs(referrer)
		}
		v, ok := a.Lookup(o.pkey)
		if !ok || v == nil {
			continue
		}
		k := keyOf(v)
		if _, seen := index[k]; !seen {
			order = append(order, k)
		}
		index[k] = a
	}
	if len(order) == 0 {
		s.Nothing()
		return s.FetchAll(ctx)
	}

	s.KeyBy(o.key, order)

	s.ResultHandler(func(fetched []*Row) ([]*Row, error) {
		for _, b := range fetched {
			v, ok := b.Lookup(o.key)
			if !ok || v == nil {
				continue
			}
			a, ok := index[keyOf(v)]
			if !ok {
				continue
			}
			b.setRef(reference, a)
			if o.unique {
				a.setRef(referrer, b)
			} else {
				a.addRef(referrer, b)
			}
		}
		return fetched, nil
	})

	return s.FetchAll(ctx)
}

// Refs 按元数据自动解析A行(from表)和本语句的表之间的关系
// 方向和外键列从注册的外键/反向外键推出来; 外键列带唯一约束走一对一
// 两张表之间查不到关系不是错误, 返回空结果什么都不做
func (s *Statement) Refs(ctx context.Context, rows any, from string) ([]*Row, error) {
	fromMeta := s.conn.tableMeta(from)
	target := s.meta
	if target == nil {
		target = s.conn.tableMeta(s.table)
	}
	rel, ok := fromMeta.Relation(target)
	if !ok {
		return []*Row{}, nil
	}
	switch rel.Kind {
	case model.RelationParent:
		// A持有指向本表的外键
		if rel.Unique {
			return s.ReferrersUnique(ctx, rows, from, s.table, RefKey(rel.Column))
		}
		return s.Referrers(ctx, rows, from, s.table, RefKey(rel.Column))
	case model.RelationChild:
		// 本表持有指向A的外键
		refOpts := []RefOption{RefKey(rel.Column), RefPkey(fromMeta.Pkey())}
		if rel.Unique {
			return s.ReferencesUnique(ctx, rows, s.table, from, refOpts...)
		}
		return s.References(ctx, rows, s.table, from, refOpts...)
	}
	return []*Row{}, nil
}

// normalizeRows 单行还是行列表是要紧的区分
// 只认 *Row 和 []*Row, 别的类型直接报错而不是猜
func normalizeRows(rows any) ([]*Row, error) {
	switch v := rows.(type) {
	case nil:
		return nil, nil
	case *Row:
		if v == nil {
			return nil, nil
		}
		return []*Row{v}, nil
	case []*Row:
		return v, nil
	}
	return nil, errs.NewErrInvalidRows(rows)
}

// keyOf 把值归一成可比较可做map键的形态
// 驱动给int64, 缓存反序列化可能给别的整数宽度, 这里抹平
func keyOf(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case string:
		return n
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}
