package querylog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/makryl/apdo"
)

func TestQueryLog(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	m := NewMiddlewareBuilder(zap.New(core)).WithArgs()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectQuery("SELECT *\nFROM fruit\nWHERE id=?").
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	conn := apdo.OpenDB(mockDB, apdo.ConnWithMiddlewares(m.Build()))
	_, err = conn.Table("fruit").Key(12).FetchAll(context.Background())
	require.NoError(t, err)

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT *\nFROM fruit\nWHERE id=?", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "SELECT", fields["type"])
	assert.Equal(t, "fruit", fields["table"])
	assert.Equal(t, []any{12}, fields["args"])
}

func TestQueryLog_WithoutArgs(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	m := NewMiddlewareBuilder(zap.New(core))

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectQuery("SELECT *\nFROM fruit").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	conn := apdo.OpenDB(mockDB, apdo.ConnWithMiddlewares(m.Build()))
	_, err = conn.Table("fruit").FetchAll(context.Background())
	require.NoError(t, err)

	entries := observed.All()
	require.Len(t, entries, 1)
	_, ok := entries[0].ContextMap()["args"]
	assert.False(t, ok)
}
