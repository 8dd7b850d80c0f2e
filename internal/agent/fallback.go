package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-agent/internal/llm"
)

// FallbackKind discriminates the fallback strategy variants.
type FallbackKind string

const (
	FallbackSearchEngine FallbackKind = "search_engine"
	FallbackSiteSearch   FallbackKind = "site_search"
	FallbackCache        FallbackKind = "cache"
)

// Fallback is a single remediation attempt for a blocked query.
type Fallback struct {
	Type        FallbackKind `json:"type"`
	Engine      string       `json:"engine,omitempty"`
	Site        string       `json:"site,omitempty"`
	Query       string       `json:"query"`
	Description string       `json:"description"`
}

// allowedEngines is the closed policy set; strategies naming anything else
// are coerced onto the default engine.
var allowedEngines = map[string]bool{
	DefaultEngine: true,
}

// Chooser produces an ordered list of fallback strategies for a blocked
// query, oracle-first with a deterministic fallback.
type Chooser struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewChooser(client llm.Client, logger zerolog.Logger) *Chooser {
	return &Chooser{llm: client, logger: logger}
}

const chooserInstruction = `You are an AI assistant that suggests fallback search strategies when the primary search is blocked.

IMPORTANT: DO NOT suggest Google. The only permitted search engine is DuckDuckGo.

Given a user query, suggest appropriate fallback strategies:
1. A retry on DuckDuckGo (the only allowed engine)
2. Site-specific searches - ONLY on sites the user named in the query
3. Cached version lookups

Return a list of fallback strategies with:
- type: "search_engine" | "site_search" | "cache"
- engine: "duckduckgo" (if type is search_engine)
- site: domain name like "wikipedia.org" (if type is site_search)
- query: the search query to use
- description: human-readable description

Return as JSON with a "fallbacks" array.`

var chooserSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"fallbacks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":        map[string]any{"type": "string", "enum": []string{"search_engine", "site_search", "cache"}},
					"engine":      map[string]any{"type": "string"},
					"site":        map[string]any{"type": "string"},
					"query":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
				},
				"required": []string{"type"},
			},
		},
	},
	"required": []string{"fallbacks"},
}

// Choose returns the strategies to try, in order. Oracle output is validated
// entry by entry; the site-mention rule is enforced on both paths.
func (c *Chooser) Choose(ctx context.Context, query string) []Fallback {
	if c.llm != nil {
		if fallbacks, ok := c.reason(ctx, query); ok {
			return fallbacks
		}
	}
	return c.deterministic(query)
}

func (c *Chooser) reason(ctx context.Context, query string) ([]Fallback, bool) {
	var raw struct {
		Fallbacks []Fallback `json:"fallbacks"`
	}
	prompt := `User Query: "` + query + `"

Suggest appropriate fallback search strategies for this query. Remember: only suggest site-specific searches for sites the user explicitly named.`
	if err := c.llm.GenerateStructured(ctx, chooserInstruction, prompt, chooserSchema, &raw); err != nil {
		c.logger.Warn().Err(err).Msg("fallback reasoning failed, using deterministic strategies")
		return nil, false
	}

	valid := make([]Fallback, 0, len(raw.Fallbacks))
	for _, fb := range raw.Fallbacks {
		fb.Type = FallbackKind(strings.ToLower(strings.TrimSpace(string(fb.Type))))
		if fb.Query == "" || strings.TrimSpace(fb.Query) == "" {
			fb.Query = query
		}
		switch fb.Type {
		case FallbackSearchEngine:
			engine := strings.ToLower(strings.TrimSpace(fb.Engine))
			if !allowedEngines[engine] {
				c.logger.Warn().Str("engine", engine).Msg("engine outside allowed set, coercing to default")
				fb.Engine = DefaultEngine
			} else {
				fb.Engine = engine
			}
		case FallbackSiteSearch:
			fb.Site = strings.ToLower(strings.TrimSpace(fb.Site))
			if fb.Site == "" {
				c.logger.Warn().Msg("site search without site, dropping strategy")
				continue
			}
			if !queryMentionsSite(query, fb.Site) {
				c.logger.Warn().Str("site", fb.Site).Msg("site not named in query, dropping strategy")
				continue
			}
		case FallbackCache:
			// Retained; executed as a plain default-engine retry.
		default:
			c.logger.Warn().Str("type", string(fb.Type)).Msg("unknown fallback type, dropping strategy")
			continue
		}
		if fb.Description == "" {
			fb.Description = "Fallback: " + string(fb.Type)
		}
		valid = append(valid, fb)
	}
	if len(valid) == 0 {
		c.logger.Warn().Msg("reasoning returned no usable fallbacks")
		return nil, false
	}
	c.logger.Info().Int("count", len(valid)).Msg("fallback strategies from reasoning")
	return valid, true
}

// deterministic emits one retry on the default engine plus site searches for
// every site the query itself names.
func (c *Chooser) deterministic(query string) []Fallback {
	fallbacks := []Fallback{{
		Type:        FallbackSearchEngine,
		Engine:      DefaultEngine,
		Query:       query,
		Description: "Retry " + DefaultEngine + " for " + query,
	}}
	for _, site := range mentionedSites(query) {
		fallbacks = append(fallbacks, Fallback{
			Type:        FallbackSiteSearch,
			Site:        site,
			Query:       query,
			Description: "Search " + site + " for " + query,
		})
	}
	return fallbacks
}

// mentionedSites lists domains the query names, either as known site names
// or as literal domain tokens.
func mentionedSites(query string) []string {
	seen := map[string]bool{}
	var sites []string
	for _, tok := range tokenize(query) {
		var site string
		if name := siteNameFromToken(tok); name != "" {
			site = strings.TrimPrefix(strings.TrimPrefix(domainMap[name], "https://"), "www.")
		} else if strings.Count(tok, ".") >= 1 && urlPattern.MatchString(tok) && !strings.Contains(tok, "/") {
			site = strings.TrimPrefix(tok, "www.")
		}
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true
		sites = append(sites, site)
	}
	return sites
}

// queryMentionsSite accepts a site when the query contains the domain or its
// first label.
func queryMentionsSite(query, site string) bool {
	lower := strings.ToLower(query)
	site = strings.TrimPrefix(strings.ToLower(site), "www.")
	if strings.Contains(lower, site) {
		return true
	}
	if label, _, found := strings.Cut(site, "."); found && label != "" {
		return strings.Contains(lower, label)
	}
	return false
}
