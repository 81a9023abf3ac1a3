// Package sqlite file: internal/adapter/datasource/sqlite/statement.go
package sqlite

import (
	"strings"
)

// 词法单元类别，与 SQLite 判断语句是否完整时使用的分类一致
const (
	tkSemi = iota
	tkWS
	tkOther
	tkExplain
	tkCreate
	tkTemp
	tkTrigger
	tkEnd
)

// 状态：0 未见到任何内容，1 语句边界，2 普通语句，3 EXPLAIN，4 CREATE，
// 5 触发器体内，6 触发器体内的分号之后，7 触发器体内的 END 之后
var stmtTrans = [8][8]uint8{
	/*            SEMI WS OTHER EXPLAIN CREATE TEMP TRIGGER END */
	/* 0 */ {1, 0, 2, 3, 4, 2, 2, 2},
	/* 1 */ {1, 1, 2, 3, 4, 2, 2, 2},
	/* 2 */ {1, 2, 2, 2, 2, 2, 2, 2},
	/* 3 */ {1, 3, 3, 2, 4, 2, 2, 2},
	/* 4 */ {1, 4, 2, 2, 2, 4, 5, 2},
	/* 5 */ {6, 5, 5, 5, 5, 5, 5, 5},
	/* 6 */ {6, 6, 5, 5, 5, 5, 5, 7},
	/* 7 */ {1, 7, 5, 5, 5, 5, 5, 5},
}

// countStatements 返回 sql 中包含的语句条数。
// 字符串、带引号的标识符与注释中的分号不计；触发器体内的分号也不计，
// 空语句（多余的分号、只有空白或注释）不算作一条语句。
func countStatements(sql string) int {
	var (
		state uint8
		count int
	)
	s := statementScanner{src: sql}
	for {
		tok, ok := s.next()
		if !ok {
			break
		}
		next := stmtTrans[state][tok]
		if tok == tkSemi && next == 1 && state != 0 && state != 1 {
			count++
		}
		state = next
	}
	if state != 0 && state != 1 {
		// 最后一条语句没有以分号结尾
		count++
	}
	return count
}

// statementScanner 只区分判断语句边界所需的几类词法单元
type statementScanner struct {
	src string
	pos int
}

func (s *statementScanner) next() (int, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	c := s.src[s.pos]
	switch {
	case c == ';':
		s.pos++
		return tkSemi, true
	case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
		s.pos++
		return tkWS, true
	case c == '-' && s.peek(1) == '-':
		if end := strings.IndexByte(s.src[s.pos:], '\n'); end >= 0 {
			s.pos += end + 1
		} else {
			s.pos = len(s.src)
		}
		return tkWS, true
	case c == '/' && s.peek(1) == '*':
		if end := strings.Index(s.src[s.pos+2:], "*/"); end >= 0 {
			s.pos += end + 4
		} else {
			s.pos = len(s.src)
		}
		return tkWS, true
	case c == '\'' || c == '"' || c == '`':
		s.skipQuoted(c)
		return tkOther, true
	case c == '[':
		s.skipQuoted(']')
		return tkOther, true
	case isIdentByte(c):
		start := s.pos
		for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
			s.pos++
		}
		return keywordToken(s.src[start:s.pos]), true
	default:
		s.pos++
		return tkOther, true
	}
}

func (s *statementScanner) peek(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

// skipQuoted 跳过以当前字符开头、以 closing 结尾的引用内容；
// 连写的两个引号 ('') 会被当作两段相邻的引用依次跳过，效果相同。
func (s *statementScanner) skipQuoted(closing byte) {
	if end := strings.IndexByte(s.src[s.pos+1:], closing); end >= 0 {
		s.pos += end + 2
		return
	}
	s.pos = len(s.src)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func keywordToken(word string) int {
	switch strings.ToUpper(word) {
	case "EXPLAIN":
		return tkExplain
	case "CREATE":
		return tkCreate
	case "TEMP", "TEMPORARY":
		return tkTemp
	case "TRIGGER":
		return tkTrigger
	case "END":
		return tkEnd
	default:
		return tkOther
	}
}
