package outlook

import (
	"net/url"
	"strings"
)

// queryParam is one OData query option. Keys such as "$top" are sent as-is.
type queryParam struct {
	key   string
	value string
}

// query keeps parameters in insertion order so request URLs are stable.
type query []queryParam

func (q query) with(key, value string) query {
	return append(q, queryParam{key: key, value: value})
}

// encode escapes each value exactly once. Spaces become %20 rather than '+',
// which Graph does not accept inside $filter and $search.
func (q query) encode() string {
	parts := make([]string, 0, len(q))
	for _, p := range q {
		parts = append(parts, p.key+"="+escapeValue(p.value))
	}
	return strings.Join(parts, "&")
}

func escapeValue(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// searchClause builds the $search value matching term in subject or sender.
func searchClause(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `"`, `\"`)
	return `"subject:` + term + ` OR from:` + term + `"`
}
