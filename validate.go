package apdo

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/makryl/apdo/internal/errs"
)

// 列校验: 每列一条规则链, 规则可以改值(trim/格式化)也可以判失败
// 硬失败不立刻中断, 收齐全部列的失败再合成一个错误返回
// 规则返回 ErrSkipColumn 表示该列不写入, 不算失败

// ColumnRule 拿到当前值, 返回处理后的值或错误
type ColumnRule func(val any) (any, error)

// ValidationError 带着出错的行和列
type ValidationError struct {
	Table  string
	Column string
	Value  any
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("apdo: 校验失败 %s.%s: %s", e.Table, e.Column, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Required 值缺失或空字符串算硬失败
func Required() ColumnRule {
	return func(val any) (any, error) {
		if val == nil {
			return nil, errors.New("不能为空")
		}
		if s, ok := val.(string); ok && s == "" {
			return nil, errors.New("不能为空")
		}
		return val, nil
	}
}

// Trim 去掉字符串两端空白, 非字符串原样通过
func Trim() ColumnRule {
	return func(val any) (any, error) {
		if s, ok := val.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return val, nil
	}
}

// Pattern 字符串必须整体匹配正则
func Pattern(re *regexp.Regexp) ColumnRule {
	return func(val any) (any, error) {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("期望字符串, 得到 %T", val)
		}
		if !re.MatchString(s) {
			return nil, fmt.Errorf("不匹配 %s", re)
		}
		return val, nil
	}
}

// Filter 自定义规则的逃生口
func Filter(fn func(val any) (any, error)) ColumnRule {
	return ColumnRule(fn)
}

// Skip 规则里返回它, 该列就从这次写入中剔除
func Skip() error {
	return errs.ErrSkipColumn
}

type Validator struct {
	rules map[string][]ColumnRule

	// order 保证跑规则的列序稳定
	order []string
}

func NewValidator() *Validator {
	return &Validator{
		rules: make(map[string][]ColumnRule, 8),
	}
}

func (v *Validator) Column(name string, rules ...ColumnRule) *Validator {
	if _, ok := v.rules[name]; !ok {
		v.order = append(v.order, name)
	}
	v.rules[name] = append(v.rules[name], rules...)
	return v
}

// Apply 跑完全部列, 返回可写入的值集合
// 任何一列硬失败, 返回的错误里聚齐了所有失败
func (v *Validator) Apply(row *Row) (map[string]any, error) {
	out := make(map[string]any, len(row.data))
	for col, val := range row.data {
		out[col] = val
	}

	var failures error
	for _, col := range v.order {
		val := out[col]
		for _, rule := range v.rules[col] {
			next, err := rule(val)
			if errors.Is(err, errs.ErrSkipColumn) {
				delete(out, col)
				break
			}
			if err != nil {
				failures = multierr.Append(failures, &ValidationError{
					Table:  row.Table(),
					Column: col,
					Value:  val,
					Err:    err,
				})
				break
			}
			val = next
			out[col] = val
		}
	}
	if failures != nil {
		return nil, failures
	}
	return out, nil
}
