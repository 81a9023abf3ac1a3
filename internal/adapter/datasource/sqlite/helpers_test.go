// file: internal/adapter/datasource/sqlite/helpers_test.go

package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, quoteIdent("users"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
	assert.Equal(t, `"a b"`, quoteIdent("a b"))
}

func TestValueText(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	testCases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"Alice", "Alice"},
		{[]byte("raw"), "raw"},
		{int64(-42), "-42"},
		{1.25, "1.25"},
		{float64(3), "3"},
		{true, "true"},
		{ts, "2024-05-06T07:08:09Z"},
		{int32(7), "7"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, valueText(tc.in), "valueText(%#v)", tc.in)
	}
}

func TestIsCompanionFile(t *testing.T) {
	assert.True(t, isCompanionFile("/d/a.db", "/d/a.db"))
	assert.True(t, isCompanionFile("/d/a.db", "/d/a.db-wal"))
	assert.True(t, isCompanionFile("/d/a.db", "/d/a.db-journal"))
	assert.False(t, isCompanionFile("/d/a.db", "/d/a.db-shm"))
	assert.False(t, isCompanionFile("/d/a.db", "/d/b.db"))
}
