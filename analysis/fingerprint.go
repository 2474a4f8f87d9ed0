package analysis

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	singleQuoteRe  = regexp.MustCompile(`'[^']*'`)
	doubleQuoteRe  = regexp.MustCompile(`"[^"]*"`)
	decimalRe      = regexp.MustCompile(`\b\d+\.\d+\b`)
	integerRe      = regexp.MustCompile(`\b\d+\b`)
	boolNullRe     = regexp.MustCompile(`(?i)\b(true|false|null)\b`)
)

// sqlKeywords are upper-cased during normalization so that two statements
// differing only in keyword case share a fingerprint.
var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "JOIN", "LEFT", "RIGHT", "INNER", "OUTER",
	"GROUP BY", "ORDER BY", "HAVING", "LIMIT", "OFFSET", "INSERT", "UPDATE",
	"DELETE", "CREATE", "DROP", "ALTER", "INDEX", "TABLE", "VIEW", "FUNCTION",
	"AND", "OR", "NOT", "IN", "EXISTS", "UNION", "VALUES", "SET", "INTO",
}

var keywordRes = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(sqlKeywords))
	for _, kw := range sqlKeywords {
		pattern := `(?i)\b` + strings.ReplaceAll(regexp.QuoteMeta(kw), ` `, `\s+`) + `\b`
		res[kw] = regexp.MustCompile(pattern)
	}
	return res
}()

/*
Normalize produces the canonical shape of a statement: comments removed,
whitespace collapsed, string/numeric/boolean literals replaced with a
placeholder token, and keywords upper-cased. Two statements that differ only
in literal values normalize to the same text, and Normalize is idempotent.
*/
func Normalize(queryText string) string {
	q := lineCommentRe.ReplaceAllString(queryText, "")
	q = blockCommentRe.ReplaceAllString(q, "")

	q = whitespaceRe.ReplaceAllString(strings.TrimSpace(q), " ")

	q = singleQuoteRe.ReplaceAllString(q, "'?'")
	q = doubleQuoteRe.ReplaceAllString(q, `"?"`)
	q = decimalRe.ReplaceAllString(q, "?")
	q = integerRe.ReplaceAllString(q, "?")
	q = boolNullRe.ReplaceAllString(q, "?")

	for _, kw := range sqlKeywords {
		q = keywordRes[kw].ReplaceAllString(q, kw)
	}

	return strings.TrimSpace(q)
}

/*
Fingerprint returns a stable hex digest of the normalized statement shape.
It is the grouping key for every downstream stage.
*/
func Fingerprint(queryText string) string {
	sum := md5.Sum([]byte(Normalize(queryText)))
	return hex.EncodeToString(sum[:])
}

// businessVerbs are the leading verbs of statements worth analyzing.
// Transaction-adjacent verbs are kept so deltas stay consistent, even though
// they rarely produce recommendations.
var businessVerbs = map[string]bool{
	"SELECT": true,
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"WITH":   true,
	"MERGE":  true,
	"COPY":   true,
}

// noisePatterns match system, catalog, and bootstrap statements that are
// counted but never analyzed.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*EXPLAIN\b`),
	regexp.MustCompile(`(?i)^\s*DEALLOCATE\b`),
	regexp.MustCompile(`(?i)^\s*(BEGIN|COMMIT|ROLLBACK|START\s+TRANSACTION|SAVEPOINT|RELEASE)\b`),
	regexp.MustCompile(`(?i)^\s*(SET|SHOW|RESET|DISCARD)\b`),
	regexp.MustCompile(`(?i)^\s*CREATE\s+EXTENSION\b`),
	regexp.MustCompile(`(?i)^\s*(VACUUM|ANALYZE|CHECKPOINT|LISTEN|NOTIFY|UNLISTEN)\b`),
	regexp.MustCompile(`(?i)\bpg_catalog\.`),
	regexp.MustCompile(`(?i)\binformation_schema\.`),
	regexp.MustCompile(`(?i)\bpg_stat_`),
	regexp.MustCompile(`(?i)\bpg_settings\b`),
}

/*
LeadingVerb returns the upper-cased first keyword of a statement, used to
classify it before any deeper analysis.
*/
func LeadingVerb(queryText string) string {
	trimmed := strings.TrimSpace(lineCommentRe.ReplaceAllString(queryText, ""))
	trimmed = strings.TrimSpace(blockCommentRe.ReplaceAllString(trimmed, ""))
	if trimmed == "" {
		return ""
	}
	fields := strings.Fields(trimmed)
	return strings.ToUpper(strings.TrimLeft(fields[0], "("))
}

/*
IsNoise reports whether a statement is non-business noise: catalog
introspection, extension or DDL bootstrap, transaction-control no-ops, or
anything without a recognized leading verb. Noise is counted separately and
dropped from analysis.
*/
func IsNoise(queryText string) bool {
	for _, re := range noisePatterns {
		if re.MatchString(queryText) {
			return true
		}
	}
	return !businessVerbs[LeadingVerb(queryText)]
}
