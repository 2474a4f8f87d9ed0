package recommend

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	createIndexRe = regexp.MustCompile(
		`(?is)^\s*CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:CONCURRENTLY\s+)?(?:IF\s+NOT\s+EXISTS\s+)?("[^"]+"|[\w.]+)\s+ON\b`)
	alterSystemSetRe = regexp.MustCompile(
		`(?is)^\s*ALTER\s+SYSTEM\s+SET\s+([\w.]+)\s*(?:=|TO)\b`)
)

/*
RollbackFor derives the statement that undoes a SQL fix. Only DDL shapes
with a deterministic inverse produce one: an index creation becomes a drop,
a system setting becomes a reset. Everything else, query rewrites included,
returns an empty string and the recommendation is non-reversible.
*/
func RollbackFor(sqlFix string) string {
	if m := createIndexRe.FindStringSubmatch(sqlFix); m != nil {
		return fmt.Sprintf("DROP INDEX IF EXISTS %s", m[1])
	}
	if m := alterSystemSetRe.FindStringSubmatch(sqlFix); m != nil {
		return fmt.Sprintf("ALTER SYSTEM RESET %s", strings.ToLower(m[1]))
	}
	return ""
}
