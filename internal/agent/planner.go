package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-agent/internal/llm"
)

// ActionKind discriminates the four plan variants.
type ActionKind string

const (
	ActionOpenURL       ActionKind = "OpenUrl"
	ActionSearchDefault ActionKind = "SearchDefault"
	ActionReadPage      ActionKind = "ReadPage"
	ActionFixIssue      ActionKind = "FixIssue"
)

// Plan is the typed intent derived from a query. Target is never empty;
// Reason and ExpectedOutcome are opaque audit strings.
type Plan struct {
	Action          ActionKind `json:"action"`
	Target          string     `json:"target"`
	Reason          string     `json:"reason"`
	ExpectedOutcome string     `json:"expected_outcome"`
}

// DefaultEngine is the only search engine the agent drives directly.
const DefaultEngine = "duckduckgo"

// typoTable rewrites common site-name and command misspellings before any
// reasoning.
var typoTable = map[string]string{
	"vist":   "visit",
	"oepn":   "open",
	"serach": "search",
	"wikipida":   "wikipedia",
	"wikapedia":  "wikipedia",
	"wikipeda":   "wikipedia",
	"wikpedia":   "wikipedia",
	"linkdin":    "linkedin",
	"linkedn":    "linkedin",
	"linkdln":    "linkedin",
	"facebok":    "facebook",
	"facebuk":    "facebook",
	"youtub":     "youtube",
	"youtoube":   "youtube",
	"gogle":      "google",
	"googel":     "google",
	"twiter":     "twitter",
	"twittr":     "twitter",
	"istagram":   "instagram",
	"instagramm": "instagram",
	"redit":      "reddit",
	"amazn":      "amazon",
	"amazone":    "amazon",
	"githib":     "github",
	"gihub":      "github",
}

// domainMap resolves known site names to their front doors.
var domainMap = map[string]string{
	"wikipedia":     "https://www.wikipedia.org",
	"linkedin":      "https://www.linkedin.com",
	"github":        "https://www.github.com",
	"youtube":       "https://www.youtube.com",
	"facebook":      "https://www.facebook.com",
	"twitter":       "https://www.twitter.com",
	"instagram":     "https://www.instagram.com",
	"reddit":        "https://www.reddit.com",
	"amazon":        "https://www.amazon.com",
	"stackoverflow": "https://stackoverflow.com",
	"google":        "https://www.google.com",
}

// navigationKeywords mark open-the-site intent when adjacent to a site name.
var navigationKeywords = []string{"visit", "open", "go to", "navigate to", "check", "read", "on", "from"}

// searchIntentKeywords mark queries that also want an in-site search after
// opening the site.
var searchIntentKeywords = []string{"find", "search", "look for", "about", "information"}

var urlPattern = regexp.MustCompile(`https?://[^\s]+|www\.[^\s]+|[a-zA-Z0-9][a-zA-Z0-9-]*\.[a-zA-Z]{2,}`)

// Planner maps a raw query to a Plan, consulting the reasoning service first
// and falling back to deterministic rules.
type Planner struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewPlanner(client llm.Client, logger zerolog.Logger) *Planner {
	return &Planner{llm: client, logger: logger}
}

// CorrectTypos rewrites known site-name and command misspellings token by
// token; the rest of the query keeps its casing.
func CorrectTypos(query string) string {
	fields := strings.Fields(query)
	changed := false
	for i, field := range fields {
		if fixed, ok := typoTable[strings.ToLower(field)]; ok {
			fields[i] = fixed
			changed = true
		}
	}
	if !changed {
		return query
	}
	return strings.Join(fields, " ")
}

// Plan produces the action plan for a query. It never fails: oracle errors
// degrade to the deterministic rules.
func (p *Planner) Plan(ctx context.Context, query string) Plan {
	corrected := CorrectTypos(query)
	if corrected != query {
		p.logger.Info().Str("from", query).Str("to", corrected).Msg("corrected query typos")
	}

	if p.llm != nil {
		if plan, ok := p.reason(ctx, corrected); ok {
			return plan
		}
	}
	return p.deterministic(corrected)
}

const plannerInstruction = `You are an AI assistant that analyzes user queries and determines the best browser automation action.

IMPORTANT: DO NOT use Google. Only use DuckDuckGo for searches.

Analyze the user query and determine:
1. Does the query contain a URL? If yes, extract the full URL.
2. What is the user's intent? (search for information, open a website, read a page, fix an issue)
3. What action should be taken? Choose one of: OpenUrl, SearchDefault, ReadPage, FixIssue
4. What are the search terms if it's a search query? (extract key terms, remove command words like "search", "find", "look for")
5. What is the expected outcome?

Rules:
- If URL is present: action = "OpenUrl", target = the URL
- If search intent: action = "SearchDefault", target = cleaned search terms (DuckDuckGo is the ONLY search engine)
- If information request without URL: action = "SearchDefault", target = the query terms
- Be smart about extracting search terms - remove filler words but keep the core meaning

Return your analysis as JSON with: action, target, reason, expected_outcome`

var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action":           map[string]any{"type": "string", "enum": []string{"OpenUrl", "SearchDefault", "ReadPage", "FixIssue"}},
		"target":           map[string]any{"type": "string"},
		"reason":           map[string]any{"type": "string"},
		"expected_outcome": map[string]any{"type": "string"},
	},
	"required": []string{"action", "target"},
}

func (p *Planner) reason(ctx context.Context, query string) (Plan, bool) {
	var raw struct {
		Action          string `json:"action"`
		Target          string `json:"target"`
		Reason          string `json:"reason"`
		ExpectedOutcome string `json:"expected_outcome"`
	}
	prompt := `User Query: "` + query + `"

Analyze this query and determine the best action to take.
Extract URLs if present, identify search intent, and clean search terms appropriately.`
	if err := p.llm.GenerateStructured(ctx, plannerInstruction, prompt, planSchema, &raw); err != nil {
		p.logger.Warn().Err(err).Msg("plan reasoning failed, using deterministic rules")
		return Plan{}, false
	}

	plan := Plan{
		Action:          coerceAction(raw.Action),
		Target:          strings.TrimSpace(raw.Target),
		Reason:          strings.TrimSpace(raw.Reason),
		ExpectedOutcome: strings.TrimSpace(raw.ExpectedOutcome),
	}
	if plan.Target == "" {
		p.logger.Warn().Msg("empty target from reasoning, using original query")
		plan.Target = query
	}
	if plan.Action == ActionOpenURL {
		plan.Target = ensureScheme(plan.Target)
	}
	if plan.Reason == "" {
		plan.Reason = "Reasoning service decision"
	}
	if plan.ExpectedOutcome == "" {
		plan.ExpectedOutcome = "Complete the requested task"
	}
	p.logger.Info().Str("action", string(plan.Action)).Str("target", plan.Target).Msg("plan from reasoning")
	return plan, true
}

// coerceAction normalises the oracle's action name and enforces engine
// policy: anything out of set or pointing at a disallowed engine becomes a
// default-engine search.
func coerceAction(action string) ActionKind {
	normalised := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(action)))
	switch normalised {
	case "openurl":
		return ActionOpenURL
	case "searchdefault", "searchduckduckgo":
		return ActionSearchDefault
	case "readpage":
		return ActionReadPage
	case "fixissue":
		return ActionFixIssue
	}
	return ActionSearchDefault
}

func (p *Planner) deterministic(query string) Plan {
	if site, target, ok := matchKnownSite(query); ok {
		p.logger.Info().Str("site", site).Str("url", target).Msg("plan from domain map")
		return Plan{
			Action:          ActionOpenURL,
			Target:          target,
			Reason:          "Known site mentioned in query",
			ExpectedOutcome: "Navigate to " + site,
		}
	}

	if match := urlPattern.FindString(query); match != "" {
		return Plan{
			Action:          ActionOpenURL,
			Target:          ensureScheme(match),
			Reason:          "URL detected in query",
			ExpectedOutcome: "Navigate to the specified website",
		}
	}

	return Plan{
		Action:          ActionSearchDefault,
		Target:          query,
		Reason:          "No specific URL provided, using default search engine",
		ExpectedOutcome: "Find relevant information",
	}
}

// matchKnownSite finds a domain-map site in the query. A standalone site
// token (optionally TLD-suffixed) always matches; a looser containment, as
// in "wikipedia's", matches only next to a navigation keyword.
func matchKnownSite(query string) (site, url string, ok bool) {
	tokens := tokenize(query)
	for i, tok := range tokens {
		if name := siteNameFromToken(tok); name != "" {
			return name, domainMap[name], true
		}
		if i > 0 && isNavigationKeyword(tokens, i) {
			for name, front := range domainMap {
				if strings.Contains(tok, name) {
					return name, front, true
				}
			}
		}
	}
	return "", "", false
}

// siteNameFromToken recognises a token naming a known site, with or without
// a TLD suffix.
func siteNameFromToken(tok string) string {
	if _, ok := domainMap[tok]; ok {
		return tok
	}
	for _, suffix := range []string{".com", ".org", ".net"} {
		if trimmed, found := strings.CutSuffix(tok, suffix); found {
			trimmed = strings.TrimPrefix(trimmed, "www.")
			if _, ok := domainMap[trimmed]; ok {
				return trimmed
			}
		}
	}
	return ""
}

// isNavigationKeyword reports whether the token(s) right before position i
// form a navigation keyword, including the two-word forms "go to" and
// "navigate to".
func isNavigationKeyword(tokens []string, i int) bool {
	prev := tokens[i-1]
	if prev == "to" && i > 1 {
		head := tokens[i-2]
		if head == "go" || head == "navigate" {
			return true
		}
	}
	for _, kw := range navigationKeywords {
		if !strings.Contains(kw, " ") && prev == kw {
			return true
		}
	}
	return false
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.Trim(f, ".,!?;:'\"()"))
	}
	return out
}

func ensureScheme(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return "https://" + target
}

// MentionsSite reports whether the query names any known site, and which.
func MentionsSite(query string) (string, bool) {
	for _, tok := range tokenize(CorrectTypos(query)) {
		if name := siteNameFromToken(tok); name != "" {
			return name, true
		}
	}
	return "", false
}

// HasSearchIntent reports whether the query carries search-intent keywords.
func HasSearchIntent(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range searchIntentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
