// file: internal/adapter/datasource/sqlite/query_test.go

package sqlite

import (
	"LiteLens/internal/core/domain"
	"LiteLens/internal/core/port"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRows_Filter(t *testing.T) {
	m, h := openManager(t, usersDB(t))
	ctx := context.Background()

	testCases := []struct {
		name     string
		filter   string
		wantRows [][]any
	}{
		{name: "前缀忽略大小写", filter: "al", wantRows: [][]any{{int64(1), "Alice"}}},
		{name: "大写输入", filter: "BO", wantRows: [][]any{{int64(2), "Bob"}}},
		{name: "数字按文本匹配", filter: "2", wantRows: [][]any{{int64(2), "Bob"}}},
		{name: "无匹配", filter: "z", wantRows: [][]any{}},
		{name: "子串不算匹配", filter: "lic", wantRows: [][]any{}},
		{name: "空串等同于不过滤", filter: "", wantRows: [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}}},
		{name: "全空白等同于不过滤", filter: "   ", wantRows: [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := m.FetchRows(ctx, h, "users", domain.NewSearchFilter(tc.filter))
			require.NoError(t, err)
			assert.Equal(t, "users", rs.Table)
			assert.Equal(t, []string{"id", "name"}, rs.Columns)
			assert.Equal(t, tc.wantRows, rs.Rows)
			assert.Equal(t, 2, rs.Total)
		})
	}
}

func TestFetchRows_NullAndTypes(t *testing.T) {
	path := createTestDB(t, "types.db",
		`CREATE TABLE things (label TEXT, score REAL, blob BLOB)`,
		`INSERT INTO things VALUES (NULL, 1.5, x'6869'), ('x', NULL, NULL)`,
	)
	m, h := openManager(t, path)
	ctx := context.Background()

	rs, err := m.FetchRows(ctx, h, "things", nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, []any{nil, 1.5, []byte("hi")}, rs.Rows[0])
	for _, row := range rs.Rows {
		assert.Len(t, row, len(rs.Columns))
	}

	// NULL 按空串参与匹配，不会匹配任何非空过滤条件
	rs, err = m.FetchRows(ctx, h, "things", domain.NewSearchFilter("1."))
	require.NoError(t, err)
	assert.Equal(t, [][]any{{nil, 1.5, []byte("hi")}}, rs.Rows)

	rs, err = m.FetchRows(ctx, h, "things", domain.NewSearchFilter("H"))
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 1)
}

func TestFetchRows_BinaryBlobKeepsBytes(t *testing.T) {
	path := createTestDB(t, "blob.db",
		`CREATE TABLE files (id INTEGER, data BLOB)`,
		`INSERT INTO files VALUES (1, x'ff00fe')`,
	)
	m, h := openManager(t, path)

	rs, err := m.FetchRows(context.Background(), h, "files", nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, []byte{0xff, 0x00, 0xfe}, rs.Rows[0][1])

	// 非 UTF-8 的字节在 JSON 中以 base64 原样往返
	raw, err := json.Marshal(rs.Rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `[1, "/wD+"]`, string(raw))

	var decoded struct {
		Data []byte `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"data":"/wD+"}`), &decoded))
	assert.Equal(t, rs.Rows[0][1], decoded.Data)
}

func TestFetchRows_UnknownTable(t *testing.T) {
	m, h := openManager(t, usersDB(t))
	ctx := context.Background()

	for _, name := range []string{"nope", "", "USERS", `users"; DROP TABLE users; --`} {
		_, err := m.FetchRows(ctx, h, name, nil)
		assert.ErrorIs(t, err, port.ErrUnknownTable, "table=%q", name)
	}

	// 表仍然存在
	rs, err := m.FetchRows(ctx, h, "users", nil)
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 2)
}

func TestFetchRows_QuotedTableName(t *testing.T) {
	path := createTestDB(t, "quoted.db",
		`CREATE TABLE "order ""items""" (sku TEXT)`,
		`INSERT INTO "order ""items""" VALUES ('A-1')`,
	)
	m, h := openManager(t, path)

	rs, err := m.FetchRows(context.Background(), h, `order "items"`, domain.NewSearchFilter("a-"))
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"A-1"}}, rs.Rows)
}

func TestFetchRows_EmptyTable(t *testing.T) {
	m, h := openManager(t, createTestDB(t, "empty_table.db", `CREATE TABLE t (a TEXT)`))

	rs, err := m.FetchRows(context.Background(), h, "t", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rs.Columns)
	assert.NotNil(t, rs.Rows)
	assert.Empty(t, rs.Rows)
	assert.Zero(t, rs.Total)
}
