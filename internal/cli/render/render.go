// Package render file: internal/cli/render/render.go
package render

import (
	"LiteLens/internal/core/domain"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// 支持的输出格式
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// ValidFormat 报告 format 是否是可识别的输出格式
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatTable, FormatJSON, FormatCSV, FormatMarkdown, "markdown", "":
		return true
	}
	return false
}

// RowSet 按指定格式输出一张表的数据
func RowSet(w io.Writer, rs *domain.RowSet, format string) error {
	if rs == nil {
		return fmt.Errorf("没有可输出的数据")
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		return renderJSON(w, rs)
	case FormatCSV:
		return renderCSV(w, rs.Columns, rs.Rows)
	case FormatMarkdown, "markdown":
		t := newWriter(w, rs.Columns, rs.Rows)
		t.RenderMarkdown()
		return nil
	default:
		if len(rs.Rows) == 0 {
			_, _ = fmt.Fprintf(w, "(0 rows, %d total)\n", rs.Total)
			return nil
		}
		t := newWriter(w, rs.Columns, rs.Rows)
		t.SetStyle(table.StyleLight)
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d rows, %d total)\n", len(rs.Rows), rs.Total)
		return nil
	}
}

// Tables 输出表清单：每张表一行，列名用逗号连接
func Tables(w io.Writer, tables []domain.TableSchema, format string) error {
	if strings.ToLower(format) == FormatJSON {
		if tables == nil {
			tables = []domain.TableSchema{}
		}
		return renderJSON(w, tables)
	}

	rows := make([][]any, 0, len(tables))
	for _, ts := range tables {
		rows = append(rows, []any{ts.Name, strings.Join(ts.Columns, ", ")})
	}
	t := newWriter(w, []string{"Table", "Columns"}, rows)
	switch strings.ToLower(format) {
	case FormatCSV:
		return renderCSV(w, []string{"Table", "Columns"}, rows)
	case FormatMarkdown, "markdown":
		t.RenderMarkdown()
	default:
		t.SetStyle(table.StyleLight)
		t.Render()
	}
	return nil
}

// Outcome 输出一次执行的结果
func Outcome(w io.Writer, out *domain.ExecOutcome, format string) error {
	if strings.ToLower(format) == FormatJSON {
		return renderJSON(w, out)
	}
	if out == nil || !out.Executed {
		_, _ = fmt.Fprintln(w, "空命令，未执行")
		return nil
	}
	_, _ = fmt.Fprintf(w, "执行成功，影响 %d 行\n", out.RowsAffected)
	return nil
}

func newWriter(w io.Writer, cols []string, rows [][]any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	return t
}

// renderCSV 输出符合 RFC 4180 的 CSV；go-pretty 的 CSV 用反斜杠转义逗号，其他工具无法读取
func renderCSV(w io.Writer, cols []string, rows [][]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, r := range rows {
		for i := range record {
			record[i] = ""
			if i < len(r) {
				record[i] = formatValue(r[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
