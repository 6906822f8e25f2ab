package sqlagent

import (
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

var (
	forbiddenKeywordRe = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|create)\b`)
	codeFenceRe        = regexp.MustCompile("(?is)```sql\\s*(.*?)\\s*```")
	bareSelectRe       = regexp.MustCompile(`(?is)(SELECT\s.*?)(?:\n\n|$)`)
	tableRefRe         = regexp.MustCompile(`(?i)\b(?:from|join)\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+(?:as\s+)?([A-Za-z_][A-Za-z0-9_]*))?`)
	aliasRe            = regexp.MustCompile(`(?i)\bas\s+([A-Za-z_][A-Za-z0-9_]*)`)
	identifierRe       = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	stringLiteralRe    = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// reservedWords are SQL keywords and functions that are never treated as
// schema references during validation.
var reservedWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"select", "from", "where", "group", "by", "order", "having", "limit",
		"offset", "as", "and", "or", "not", "in", "is", "null", "like",
		"between", "distinct", "on", "join", "inner", "left", "right", "outer",
		"full", "cross", "union", "all", "case", "when", "then", "else", "end",
		"asc", "desc", "exists", "using", "natural", "glob", "cast", "with",
		"avg", "sum", "count", "min", "max", "total", "round", "abs",
		"coalesce", "ifnull", "nullif", "substr", "upper", "lower", "length",
		"trim", "replace", "instr", "strftime", "date", "time", "datetime",
		"julianday", "group_concat", "integer", "real", "text", "numeric",
		"true", "false",
	} {
		reservedWords[w] = struct{}{}
	}
}

// extractSQL pulls the candidate query out of a model completion,
// deterministically stripping code fences. It prefers a ```sql fenced block
// and falls back to the first bare SELECT.
func extractSQL(completion string) string {
	if m := codeFenceRe.FindStringSubmatch(completion); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareSelectRe.FindStringSubmatch(completion); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// validateQuery checks a candidate before execution: read-only, a single
// statement, and every referenced table and column present in the snapshot.
// It does not judge semantic correctness; a schema-valid query with the wrong
// aggregation passes.
func validateQuery(sql string, snapshot contractx.SchemaSnapshot) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("%w: la requête est vide", contractx.ErrSQLValidation)
	}

	if m := forbiddenKeywordRe.FindString(trimmed); m != "" {
		return fmt.Errorf("%w: mot-clé interdit '%s'", contractx.ErrSQLValidation, strings.ToUpper(m))
	}

	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return fmt.Errorf("%w: seules les requêtes SELECT sont autorisées", contractx.ErrSQLValidation)
	}

	// One trailing semicolon is tolerated; anything more means multiple statements.
	single := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(single, ";") {
		return fmt.Errorf("%w: plusieurs instructions détectées", contractx.ErrSQLValidation)
	}

	if strings.Count(single, "(") != strings.Count(single, ")") {
		return fmt.Errorf("%w: parenthèses non équilibrées", contractx.ErrSQLValidation)
	}

	return validateReferences(single, snapshot)
}

func validateReferences(sql string, snapshot contractx.SchemaSnapshot) error {
	// String literals contain free text, not schema references.
	stripped := stringLiteralRe.ReplaceAllString(sql, "''")

	known := map[string]struct{}{}

	for _, m := range tableRefRe.FindAllStringSubmatch(stripped, -1) {
		table := m[1]
		if !snapshot.HasTable(table) {
			return fmt.Errorf("%w: table inconnue '%s'", contractx.ErrSQLValidation, table)
		}
		known[strings.ToLower(table)] = struct{}{}
		if alias := m[2]; alias != "" {
			if _, reserved := reservedWords[strings.ToLower(alias)]; !reserved {
				known[strings.ToLower(alias)] = struct{}{}
			}
		}
	}

	for _, m := range aliasRe.FindAllStringSubmatch(stripped, -1) {
		known[strings.ToLower(m[1])] = struct{}{}
	}

	for _, ident := range identifierRe.FindAllString(stripped, -1) {
		lower := strings.ToLower(ident)
		if _, ok := reservedWords[lower]; ok {
			continue
		}
		if _, ok := known[lower]; ok {
			continue
		}
		if snapshot.HasTable(ident) || snapshot.HasColumn(ident) {
			continue
		}
		return fmt.Errorf("%w: colonne inconnue '%s'", contractx.ErrSQLValidation, ident)
	}

	return nil
}
