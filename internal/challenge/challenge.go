// Package challenge decides whether a page is showing an anti-automation
// challenge (reCAPTCHA, hCaptcha, Cloudflare Turnstile, or a generic
// CAPTCHA form).
package challenge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/polzovatel/web-research-agent/internal/browser"
)

// selectors probed for a visible challenge widget, in order.
var selectors = []string{
	// reCAPTCHA
	`iframe[src*="recaptcha"]`,
	`div[class*="recaptcha"]`,
	`div[id*="recaptcha"]`,
	`.g-recaptcha`,
	`[data-sitekey]`,
	// hCaptcha
	`iframe[src*="hcaptcha"]`,
	`div[id*="hcaptcha"]`,
	`.h-captcha`,
	// Cloudflare Turnstile
	`iframe[src*="challenges.cloudflare.com"]`,
	`div[class*="cf-turnstile"]`,
	// Generic
	`div[class*="captcha"]`,
	`div[id*="captcha"]`,
	`input[name*="captcha"]`,
}

// phrases that mark a human-verification interstitial.
var phrases = []string{
	"verify you are human",
	"prove you are not a robot",
	"i'm not a robot",
	"security check",
	"human verification",
}

// keywords checked against the full page source; a hit only counts when the
// keyword also appears in a structural attribute, which guards against
// pages that merely mention CAPTCHAs.
var keywords = []string{
	"recaptcha",
	"hcaptcha",
	"captcha",
	"cloudflare",
	"turnstile",
	"challenge",
}

// Present reports whether the current page shows a challenge. It never
// panics or returns an error: any internal failure reads as "no challenge".
func Present(p browser.Page) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			found = false
		}
	}()
	if p == nil {
		return false
	}
	if visibleSelectorMatch(p) {
		return true
	}
	if phraseMatch(p) {
		return true
	}
	return keywordMatch(p)
}

func visibleSelectorMatch(p browser.Page) bool {
	sels, err := json.Marshal(selectors)
	if err != nil {
		return false
	}
	script := fmt.Sprintf(`() => {
		const sels = %s;
		for (const sel of sels) {
			let el;
			try { el = document.querySelector(sel); } catch (e) { continue; }
			if (!el) continue;
			const style = window.getComputedStyle(el);
			const rect = el.getBoundingClientRect();
			if (style.display !== 'none' && style.visibility !== 'hidden' && rect.width > 0 && rect.height > 0) {
				return sel;
			}
		}
		return null;
	}`, sels)
	val, err := p.Eval(script)
	if err != nil {
		return false
	}
	_, ok := val.(string)
	return ok && val != ""
}

func phraseMatch(p browser.Page) bool {
	val, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return false
	}
	text, _ := val.(string)
	text = strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func keywordMatch(p browser.Page) bool {
	html, err := p.Content()
	if err != nil {
		return false
	}
	val, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		val = ""
	}
	text, _ := val.(string)
	haystack := strings.ToLower(html + text)
	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			continue
		}
		structural := []string{
			`class="` + kw,
			`id="` + kw,
			`data-` + kw,
			`src*=` + kw,
		}
		for _, pattern := range structural {
			if strings.Contains(haystack, pattern) {
				return true
			}
		}
	}
	return false
}
