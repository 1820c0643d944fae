package apdo

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Fruit struct {
	ID    int64
	Name  string
	Tree  int64
	Color sql.NullString `apdo:"column=color"`
}

func Test_Statement_FetchObjects(t *testing.T) {
	conn, mock := newMockConn(t)
	mock.ExpectQuery("SELECT *\nFROM fruit").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tree", "color"}).
			AddRow(1, "apple1", 1, "red").
			AddRow(3, "orange", 2, nil))

	objs, err := conn.Table("fruit").FetchObjects(context.Background(), &Fruit{})
	require.NoError(t, err)
	require.Len(t, objs, 2)

	first, ok := objs[0].(*Fruit)
	require.True(t, ok)
	assert.Equal(t, &Fruit{
		ID:    1,
		Name:  "apple1",
		Tree:  1,
		Color: sql.NullString{String: "red", Valid: true},
	}, first)

	second := objs[1].(*Fruit)
	assert.Equal(t, int64(3), second.ID)
	assert.False(t, second.Color.Valid)
}

func Test_convertValue(t *testing.T) {
	cases := []struct {
		name string
		val  any
		typ  reflect.Type
		want any

		wantErr bool
	}{
		{name: "nil_to_zero", val: nil, typ: reflect.TypeOf(int64(0)), want: int64(0)},
		{name: "assignable", val: "x", typ: reflect.TypeOf(""), want: "x"},
		{name: "int64_to_int", val: int64(7), typ: reflect.TypeOf(0), want: 7},
		{name: "int8_to_int64", val: int8(7), typ: reflect.TypeOf(int64(0)), want: int64(7)},
		{name: "float_to_int", val: 3.0, typ: reflect.TypeOf(0), want: 3},
		// int到string不能走rune转换, 必须是十进制文本
		{name: "int_to_string", val: int64(65), typ: reflect.TypeOf(""), want: "65"},
		{name: "string_to_int", val: "42", typ: reflect.TypeOf(0), want: 42},
		{name: "string_to_uint", val: "42", typ: reflect.TypeOf(uint32(0)), want: uint32(42)},
		{name: "string_to_float", val: "1.5", typ: reflect.TypeOf(0.0), want: 1.5},
		{name: "string_to_bool", val: "true", typ: reflect.TypeOf(false), want: true},
		{name: "bad_number", val: "abc", typ: reflect.TypeOf(0), wantErr: true},
		{
			name: "scanner",
			val:  "red",
			typ:  reflect.TypeOf(sql.NullString{}),
			want: sql.NullString{String: "red", Valid: true},
		},
		{
			name: "nil_scanner",
			val:  nil,
			typ:  reflect.TypeOf(sql.NullString{}),
			want: sql.NullString{},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := convertValue(c.val, c.typ)
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got.Interface())
		})
	}
}

func Test_toInt64(t *testing.T) {
	cases := []struct {
		name string
		val  any
		want int64

		wantErr bool
	}{
		{name: "int64", val: int64(3), want: 3},
		{name: "int", val: 3, want: 3},
		{name: "uint64", val: uint64(3), want: 3},
		{name: "float64", val: 3.0, want: 3},
		{name: "string", val: "3", want: 3},
		{name: "bytes", val: []byte("3"), want: 3},
		{name: "nil", val: nil, want: 0},
		{name: "unsupported", val: struct{}{}, wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := toInt64(c.val)
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func Test_Shape_descriptor(t *testing.T) {
	assert.Equal(t, "assoc", Assoc().descriptor())
	assert.Equal(t, "column", Shape{Kind: FetchColumn}.descriptor())
	assert.Equal(t, "tuple", Shape{Kind: FetchTuple}.descriptor())
	assert.Equal(t, "pairs", Shape{Kind: FetchPairs}.descriptor())
	// Object形态把目标类型编进描述, 不同类型不共享缓存
	assert.Equal(t, "object:*apdo.Fruit", ObjectOf(&Fruit{}).descriptor())
}
