package apdo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makryl/apdo/internal/errs"
	"github.com/makryl/apdo/model"
)

// 三个水果两棵树: apple1和apple2长在树1上, orange长在树2上
func fetchFruits(t *testing.T, conn *Conn, mock sqlmock.Sqlmock) []*Row {
	t.Helper()
	mock.ExpectQuery("SELECT *\nFROM fruit").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tree"}).
			AddRow(1, "apple1", 1).
			AddRow(2, "apple2", 1).
			AddRow(3, "orange", 2))
	fruits, err := conn.Table("fruit").FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fruits, 3)
	return fruits
}

func Test_Statement_Referrers(t *testing.T) {
	conn, mock := newMockConn(t)
	fruits := fetchFruits(t, conn, mock)

	// 三个水果只有两个不同的树键, 去重后一条IN查询
	mock.ExpectQuery("SELECT *\nFROM tree\nWHERE id IN (?,?)").
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "apple tree").
			AddRow(2, "orange tree"))

	trees, err := conn.Table("tree").Referrers(context.Background(), fruits, "fruit", "tree")
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, "apple tree", trees[0].Get("name"))
	assert.Equal(t, "orange tree", trees[1].Get("name"))

	// A侧: 每个水果的tree槽指向自己的树
	assert.Same(t, trees[0], fruits[0].Ref("tree"))
	assert.Same(t, trees[0], fruits[1].Ref("tree"))
	assert.Same(t, trees[1], fruits[2].Ref("tree"))

	// B侧: 每棵树的fruit槽聚了自己的水果
	require.Len(t, trees[0].Refs("fruit"), 2)
	assert.Same(t, fruits[0], trees[0].Refs("fruit")[0])
	assert.Same(t, fruits[1], trees[0].Refs("fruit")[1])
	require.Len(t, trees[1].Refs("fruit"), 1)
	assert.Same(t, fruits[2], trees[1].Refs("fruit")[0])

	// 连接是共享指针, 改一侧另一侧立刻可见
	trees[0].Set("name", "renamed")
	assert.Equal(t, "renamed", fruits[1].Ref("tree").Get("name"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Statement_Referrers_SingleRow(t *testing.T) {
	conn, mock := newMockConn(t)
	fruits := fetchFruits(t, conn, mock)

	mock.ExpectQuery("SELECT *\nFROM tree\nWHERE id IN (?)").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(2, "orange tree"))

	// 单行和单元素列表语义等价
	trees, err := conn.Table("tree").Referrers(context.Background(), fruits[2], "fruit", "tree")
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Same(t, trees[0], fruits[2].Ref("tree"))
}

func Test_Statement_Referrers_EmptyInput(t *testing.T) {
	conn, mock := newMockConn(t)

	trees, err := conn.Table("tree").Referrers(context.Background(), []*Row{}, "fruit", "tree")
	require.NoError(t, err)
	assert.Len(t, trees, 0)
	// 空输入一次数据库都不碰
	assert.Equal(t, int64(0), conn.ExecutedCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Statement_Referrers_NilForeignKey(t *testing.T) {
	conn, mock := newMockConn(t)
	mock.ExpectQuery("SELECT *\nFROM fruit").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tree"}).
			AddRow(1, "wild berry", nil))
	fruits, err := conn.Table("fruit").FetchAll(context.Background())
	require.NoError(t, err)

	// 外键全空: 不发查询, 槽位保持未设置
	trees, err := conn.Table("tree").Referrers(context.Background(), fruits, "fruit", "tree")
	require.NoError(t, err)
	assert.Len(t, trees, 0)
	assert.Nil(t, fruits[0].Ref("tree"))
	assert.Equal(t, int64(1), conn.ExecutedCount())
}

func Test_Statement_Referrers_CompositeKey(t *testing.T) {
	conn, _ := newMockConn(t)
	_, err := conn.Table("tree").
		PrimaryKey("a", "b").
		Referrers(context.Background(), []*Row{}, "fruit", "tree")
	assert.Equal(t, errs.ErrCompositeKey, err)
}

func Test_Statement_ReferrersUnique(t *testing.T) {
	conn, mock := newMockConn(t)
	mock.ExpectQuery("SELECT *\nFROM profile").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user"}).AddRow(10, 1))
	profiles, err := conn.Table("profile").FetchAll(context.Background())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT *\nFROM user\nWHERE id IN (?)").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice"))

	users, err := conn.Table("user").
		ReferrersUnique(context.Background(), profiles, "profile", "user")
	require.NoError(t, err)
	require.Len(t, users, 1)
	// 一对一: 两边都是单槽
	assert.Same(t, users[0], profiles[0].Ref("user"))
	assert.Same(t, profiles[0], users[0].Ref("profile"))
}

func Test_Statement_References(t *testing.T) {
	conn, mock := newMockConn(t)
	mock.ExpectQuery("SELECT *\nFROM tree").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "apple tree").
			AddRow(2, "orange tree").
			AddRow(3, "bare tree"))
	trees, err := conn.Table("tree").FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, trees, 3)

	mock.ExpectQuery("SELECT *\nFROM fruit\nWHERE tree IN (?,?,?)").
		WithArgs(1, 2, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tree"}).
			AddRow(1, "apple1", 1).
			AddRow(2, "apple2", 1).
			AddRow(3, "orange", 2))

	fruits, err := conn.Table("fruit").References(context.Background(), trees, "fruit", "tree")
	require.NoError(t, err)
	require.Len(t, fruits, 3)

	require.Len(t, trees[0].Refs("fruit"), 2)
	assert.Same(t, fruits[0], trees[0].Refs("fruit")[0])
	assert.Same(t, fruits[1], trees[0].Refs("fruit")[1])
	require.Len(t, trees[1].Refs("fruit"), 1)
	assert.Same(t, fruits[2], trees[1].Refs("fruit")[0])

	// 没有孩子的树拿到的是空列表, 不是nil, 和没解析过可区分
	assert.NotNil(t, trees[2].Refs("fruit"))
	assert.Len(t, trees[2].Refs("fruit"), 0)

	// 反向槽也连上了
	assert.Same(t, trees[0], fruits[0].Ref("tree"))
	assert.Same(t, trees[1], fruits[2].Ref("tree"))
}

func Test_Statement_References_EmptyInput(t *testing.T) {
	conn, _ := newMockConn(t)
	fruits, err := conn.Table("fruit").References(context.Background(), nil, "fruit", "tree")
	require.NoError(t, err)
	assert.Len(t, fruits, 0)
	assert.Equal(t, int64(0), conn.ExecutedCount())
}

func Test_Statement_ReferencesUnique(t *testing.T) {
	conn, mock := newMockConn(t)
	mock.ExpectQuery("SELECT *\nFROM user").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice"))
	users, err := conn.Table("user").FetchAll(context.Background())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT *\nFROM profile\nWHERE user IN (?)").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user"}).AddRow(10, 1))

	profiles, err := conn.Table("profile").
		ReferencesUnique(context.Background(), users, "profile", "user")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Same(t, profiles[0], users[0].Ref("profile"))
	assert.Same(t, users[0], profiles[0].Ref("user"))
}

func Test_Statement_Refs(t *testing.T) {
	registry := model.NewRegistry()
	registry.Register(
		&model.Table{
			Name:        "fruit",
			PrimaryKey:  []string{"id"},
			ForeignKeys: map[string]string{"tree": "tree"},
		},
		&model.Table{
			Name:       "tree",
			PrimaryKey: []string{"id"},
		},
	)

	t.Run("parent_direction", func(t *testing.T) {
		conn, mock := newMockConn(t, ConnWithRegistry(registry))
		fruits := fetchFruits(t, conn, mock)

		mock.ExpectQuery("SELECT *\nFROM tree\nWHERE id IN (?,?)").
			WithArgs(1, 2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(1, "apple tree").
				AddRow(2, "orange tree"))

		// fruit持有外键, tree是被指向侧
		trees, err := conn.Table("tree").Refs(context.Background(), fruits, "fruit")
		require.NoError(t, err)
		require.Len(t, trees, 2)
		assert.Same(t, trees[0], fruits[0].Ref("tree"))
		assert.Same(t, fruits[0], trees[0].Refs("fruit")[0])
	})

	t.Run("child_direction", func(t *testing.T) {
		conn, mock := newMockConn(t, ConnWithRegistry(registry))
		mock.ExpectQuery("SELECT *\nFROM tree").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "apple tree"))
		trees, err := conn.Table("tree").FetchAll(context.Background())
		require.NoError(t, err)

		mock.ExpectQuery("SELECT *\nFROM fruit\nWHERE tree IN (?)").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tree"}).
				AddRow(1, "apple1", 1).
				AddRow(2, "apple2", 1))

		fruits, err := conn.Table("fruit").Refs(context.Background(), trees, "tree")
		require.NoError(t, err)
		require.Len(t, fruits, 2)
		assert.Len(t, trees[0].Refs("fruit"), 2)
	})

	t.Run("no_relation", func(t *testing.T) {
		conn, mock := newMockConn(t, ConnWithRegistry(registry))
		fruits := fetchFruits(t, conn, mock)

		// 没注册关系不是错误, 返回空结果什么都不做
		rows, err := conn.Table("stone").Refs(context.Background(), fruits, "fruit")
		require.NoError(t, err)
		assert.Len(t, rows, 0)
		assert.Equal(t, int64(1), conn.ExecutedCount())
	})
}

func Test_normalizeRows(t *testing.T) {
	conn, _ := newMockConn(t)
	row := NewRow(conn, "fruit")

	cases := []struct {
		name    string
		input   any
		wantLen int
		wantErr bool
	}{
		{name: "nil", input: nil, wantLen: 0},
		{name: "nil_row", input: (*Row)(nil), wantLen: 0},
		{name: "single", input: row, wantLen: 1},
		{name: "list", input: []*Row{row, row}, wantLen: 2},
		{name: "invalid", input: "not rows", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			list, err := normalizeRows(c.input)
			if c.wantErr {
				assert.Equal(t, errs.NewErrInvalidRows(c.input), err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, list, c.wantLen)
		})
	}
}

func Test_keyOf(t *testing.T) {
	// 驱动给的宽度和缓存反序列化的宽度都归一到同一个键
	assert.Equal(t, keyOf(int64(7)), keyOf(int8(7)))
	assert.Equal(t, keyOf(int64(7)), keyOf(uint32(7)))
	assert.Equal(t, keyOf("x"), keyOf([]byte("x")))
	assert.NotEqual(t, keyOf(int64(7)), keyOf("7"))
}
