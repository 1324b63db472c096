package schema

import "strings"

// SplitStatements splits a DDL script on statement-ending semicolons. Each
// complete statement keeps its semicolon; an unterminated tail is returned
// as is. "--" comments are dropped and semicolons inside single-quoted
// literals do not end a statement.
func SplitStatements(ddl string) []string {
	var (
		stmts   []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" && stmt != ";" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}
	for _, line := range strings.Split(ddl, "\n") {
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case ch == '\'':
				quoted = !quoted
			case !quoted && ch == '-' && i+1 < len(line) && line[i+1] == '-':
				i = len(line)
				continue
			case !quoted && ch == ';':
				current.WriteByte(ch)
				flush()
				continue
			}
			current.WriteByte(ch)
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
	}
	flush()
	return stmts
}
