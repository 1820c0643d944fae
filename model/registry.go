package model

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/makryl/apdo/internal/errs"
)

const tagName = "column"

// Struct 是 Object 取数形态的目标结构体元数据
type Struct struct {
	Type     reflect.Type
	Fields   []*Field
	FieldMap map[string]*Field
	// ColumnMap 数据库列名 => 字段
	ColumnMap map[string]*Field
}

type Field struct {
	// GoName 结构体字段名
	GoName string
	// ColName 数据库列名
	ColName string
	Type    reflect.Type
	Index   int
}

// Registry 代表元数据的注册中心
// 表元数据按表名注册; 结构体元数据按需解析
type Registry struct {
	tables map[string]*Table

	// 为什么要用reflect.Type作为key
	// 因为有同名结构体但表名不一样的需求
	structs map[reflect.Type]*Struct

	// 保护map
	// 采用double check的读写锁写法, 避免重复解析
	lock sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		// 一个项目如果超过64张表, 说明需要拆分了
		tables:  make(map[string]*Table, 64),
		structs: make(map[reflect.Type]*Struct, 64),
	}
}

// Register 注册表元数据, 返回Registry本身方便链式注册
// 重复注册以后注册的为准
func (r *Registry) Register(tables ...*Table) *Registry {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, t := range tables {
		if t.Unique == nil {
			t.Unique = map[string]struct{}{}
		}
		if t.ForeignKeys == nil {
			t.ForeignKeys = map[string]string{}
		}
		if t.ReverseKeys == nil {
			t.ReverseKeys = map[string]map[string]string{}
		}
		r.tables[t.Name] = t
	}
	return r
}

// Table 按表名取元数据
// 未注册的表返回 ok=false, 由调用方决定兜底行为
func (r *Registry) Table(name string) (*Table, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Get 解析结构体元数据, 只支持指向结构体的一级指针
func (r *Registry) Get(entity any) (*Struct, error) {
	typ := reflect.TypeOf(entity)
	r.lock.RLock()
	s, ok := r.structs[typ]
	r.lock.RUnlock()
	if ok {
		return s, nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	// double check, 保证不重复解析
	s, ok = r.structs[typ]
	if ok {
		return s, nil
	}

	s, err := r.parseStruct(entity)
	if err != nil {
		return nil, err
	}
	r.structs[typ] = s
	return s, nil
}

func (r *Registry) parseStruct(entity any) (*Struct, error) {
	typ := reflect.TypeOf(entity)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, errs.NewErrPointerOnly(entity)
	}
	typ = typ.Elem()
	numField := typ.NumField()
	fields := make([]*Field, 0, numField)
	fieldMap := make(map[string]*Field, numField)
	columnMap := make(map[string]*Field, numField)
	for i := 0; i < numField; i++ {
		fd := typ.Field(i)
		pair, err := r.parseTag(fd.Tag)
		if err != nil {
			return nil, err
		}
		colName := pair[tagName]
		if colName == "" {
			colName = underscoreName(fd.Name)
		}
		f := &Field{
			GoName:  fd.Name,
			ColName: colName,
			Type:    fd.Type,
			Index:   i,
		}
		fields = append(fields, f)
		fieldMap[fd.Name] = f
		columnMap[colName] = f
	}
	return &Struct{
		Type:      typ,
		Fields:    fields,
		FieldMap:  fieldMap,
		ColumnMap: columnMap,
	}, nil
}

func (r *Registry) parseTag(tag reflect.StructTag) (map[string]string, error) {
	apdoTag, ok := tag.Lookup("apdo")
	if !ok {
		return map[string]string{}, nil
	}
	pairs := strings.Split(apdoTag, ",")
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		segs := strings.Split(pair, "=")
		if len(segs) != 2 {
			return nil, errs.NewErrInvalidTagContent(pair)
		}
		tags[segs[0]] = segs[1]
	}
	return tags, nil
}

// 驼峰名字符串转下划线命名
// 连续大写当成一个缩略词, HTTPCode => http_code
func underscoreName(name string) string {
	runes := []rune(name)
	var buf []byte
	for i, v := range runes {
		if unicode.IsUpper(v) {
			lowerPrev := i > 0 && !unicode.IsUpper(runes[i-1])
			lowerNext := i > 0 && i < len(runes)-1 && !unicode.IsUpper(runes[i+1])
			if lowerPrev || lowerNext {
				buf = append(buf, '_')
			}
			buf = append(buf, byte(unicode.ToLower(v)))
		} else {
			buf = append(buf, byte(v))
		}
	}
	return string(buf)
}
