// Package domain file: internal/core/domain/db_models.go
package domain

import (
	"strings"
)

// TableSchema 描述数据库目录中的一张表：表名及按声明顺序排列的列名。
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// RowSet 是某张表在读取时刻的快照。
// 不变量：Rows 中每一行的长度都等于 len(Columns)。
type RowSet struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Total 是过滤前的行数
	Total int `json:"total"`
}

// SearchFilter 是大小写不敏感的前缀过滤条件。
// nil 表示不过滤。
type SearchFilter struct {
	text  string
	lower string
}

// NewSearchFilter 根据用户输入构造过滤条件。
// 空串或全空白的输入视为“无过滤”，返回 nil；否则保留原文（不做裁剪）。
func NewSearchFilter(text string) *SearchFilter {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &SearchFilter{text: text, lower: strings.ToLower(text)}
}

// Text 返回过滤条件原文。
func (f *SearchFilter) Text() string {
	if f == nil {
		return ""
	}
	return f.text
}

// MatchValue 判断单个值的文本形式（转小写后）是否以过滤文本（转小写后）开头。
func (f *SearchFilter) MatchValue(valueText string) bool {
	if f == nil {
		return true
	}
	return strings.HasPrefix(strings.ToLower(valueText), f.lower)
}

// SqlCommand 是用户提交的原始语句，执行前除语句条数外不做解析和校验。
type SqlCommand string

// Normalize 去掉首尾空白，返回实际要执行的语句。
func (c SqlCommand) Normalize() string {
	return strings.TrimSpace(string(c))
}

// IsEmpty 表示裁剪后为空，执行器把它当作空操作。
func (c SqlCommand) IsEmpty() bool {
	return c.Normalize() == ""
}

// ExecOutcome 是一次成功执行（含空操作）的结果。
type ExecOutcome struct {
	Executed     bool   `json:"executed"` // false 表示命令为空，没有触达数据库
	RowsAffected int64  `json:"rows_affected"`
	RefreshTable string `json:"refresh_table,omitempty"` // 调用方当前选中的表，为空表示无需刷新
}
