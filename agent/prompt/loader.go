package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/sql.txt
	sqlRaw string

	//go:embed template/analysis.txt
	analysisRaw string

	//go:embed template/generic.txt
	genericRaw string
)

// PromptSet holds loaded system prompt content per agent.
type PromptSet struct {
	Router   string
	SQL      string
	Analysis string
	Generic  string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:   strings.TrimSpace(routerRaw),
		SQL:      strings.TrimSpace(sqlRaw),
		Analysis: strings.TrimSpace(analysisRaw),
		Generic:  strings.TrimSpace(genericRaw),
	}
}
