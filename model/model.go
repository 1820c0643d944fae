package model

// Table 是一张表的元数据, 构造一次后只读
// 注意: 同一张表可以有多个外键指向同一张目标表, 用本地列名区分
type Table struct {
	// Name 表名
	Name string

	// PrimaryKey 主键列, 长度大于1代表复合主键
	PrimaryKey []string

	// Unique 唯一键集合, 只做成员判断
	Unique map[string]struct{}

	// ForeignKeys 外键表 => 持有外键id的本地列
	ForeignKeys map[string]string

	// ReverseKeys 引用本表的表 => 对方持有外键的列名 => 列名
	// 之所以是两层map, 是为了支持同一张表里多个外键指向本表
	ReverseKeys map[string]map[string]string
}

// Simple 是否单列主键
// 行级缓存和引用解析都只在单列主键下工作
func (t *Table) Simple() bool {
	return len(t.PrimaryKey) == 1
}

// Pkey 返回单列主键名, 复合主键返回第一列
func (t *Table) Pkey() string {
	if len(t.PrimaryKey) == 0 {
		return ""
	}
	return t.PrimaryKey[0]
}

func (t *Table) IsUnique(col string) bool {
	_, ok := t.Unique[col]
	return ok
}

type RelationKind uint8

const (
	// RelationNone 两张表之间没有外键关系
	RelationNone RelationKind = iota
	// RelationParent 本表持有指向目标表主键的外键 (多对一)
	RelationParent
	// RelationChild 目标表持有指向本表主键的外键 (一对多)
	RelationChild
)

// Relation 描述本表与目标表之间的外键关系
type Relation struct {
	Kind RelationKind

	// Column 持有外键的那一侧的本地列名
	Column string

	// Unique 外键列带唯一约束, 即一对一关系
	Unique bool
}

// Relation 显式的关系查询, 代替动态属性派发
// 找不到关系不是错误, 返回 ok=false 由调用方决定是否解析
func (t *Table) Relation(target *Table) (Relation, bool) {
	if col, ok := t.ForeignKeys[target.Name]; ok {
		return Relation{
			Kind:   RelationParent,
			Column: col,
			Unique: t.IsUnique(col),
		}, true
	}
	if col, ok := target.ForeignKeys[t.Name]; ok {
		return Relation{
			Kind:   RelationChild,
			Column: col,
			Unique: target.IsUnique(col),
		}, true
	}
	// ReverseKeys 兜底, 覆盖同一张表多个外键的场景
	if cols, ok := t.ReverseKeys[target.Name]; ok {
		for _, col := range cols {
			return Relation{
				Kind:   RelationChild,
				Column: col,
				Unique: target.IsUnique(col),
			}, true
		}
	}
	return Relation{}, false
}
