// Package techdetect matches a fixed rule table against page signals to
// produce a confidence-rated technology list. Detection is page-local and
// deterministic; cross-page aggregation belongs to the crawl engine.
package techdetect

import (
	"regexp"
	"sort"
	"strings"

	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

// SignalKind enumerates the checks a rule can declare.
type SignalKind int

const (
	// SignalScriptSrc matches a regex against external script URLs.
	SignalScriptSrc SignalKind = iota
	// SignalInlineScript matches a regex against inline script text.
	SignalInlineScript
	// SignalGlobalVar checks a global symbol's presence in the page.
	SignalGlobalVar
	// SignalMetaTag matches a meta tag by name, optionally extracting a
	// version from its content.
	SignalMetaTag
	// SignalSelector checks whether a CSS selector matches any element.
	SignalSelector
)

// Signal is one ordered check within a rule.
type Signal struct {
	Kind    SignalKind
	Pattern string
	// Content applies to meta-tag signals only: a regex the tag's content
	// must match (Pattern names the tag).
	Content string
	// VersionPattern, when set, is applied to the matched source string;
	// its first capture group becomes the version. Extraction is
	// best-effort: no match leaves the version unset.
	VersionPattern string
}

// Rule declares how one technology is recognised.
type Rule struct {
	Name     string
	Category types.TechCategory
	Signals  []Signal
}

// Probe carries the page signals the detector evaluates. HasSelector and
// Globals are supplied by the caller so the evaluation logic needs no
// browser of its own.
type Probe struct {
	ScriptSrcs    []string
	InlineScripts []string
	MetaTags      map[string]string
	HasSelector   func(selector string) bool
	Globals       map[string]bool
}

type compiledSignal struct {
	signal  Signal
	pattern *regexp.Regexp
	content *regexp.Regexp
	version *regexp.Regexp
}

type compiledRule struct {
	rule    Rule
	signals []compiledSignal
}

var compiled []compiledRule

func init() {
	compiled = make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{rule: r}
		for _, s := range r.Signals {
			cs := compiledSignal{signal: s}
			switch s.Kind {
			case SignalScriptSrc, SignalInlineScript:
				cs.pattern = regexp.MustCompile(s.Pattern)
			case SignalMetaTag:
				if s.Content != "" {
					cs.content = regexp.MustCompile(s.Content)
				}
			}
			if s.VersionPattern != "" {
				cs.version = regexp.MustCompile(s.VersionPattern)
			}
			cr.signals = append(cr.signals, cs)
		}
		compiled = append(compiled, cr)
	}
}

// GlobalSymbols returns every global-variable name the rule table checks,
// so the caller can probe them all with a single in-page evaluation.
func GlobalSymbols() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, cr := range compiled {
		for _, cs := range cr.signals {
			if cs.signal.Kind != SignalGlobalVar {
				continue
			}
			if _, dup := seen[cs.signal.Pattern]; dup {
				continue
			}
			seen[cs.signal.Pattern] = struct{}{}
			names = append(names, cs.signal.Pattern)
		}
	}
	sort.Strings(names)
	return names
}

// GlobalProbeScript builds a JavaScript expression that evaluates to the
// subset of names present as window globals.
func GlobalProbeScript(names []string) string {
	var b strings.Builder
	b.WriteString("[")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`"`)
		b.WriteString(name)
		b.WriteString(`"`)
	}
	b.WriteString(`].filter((n) => { try { return typeof window[n] !== "undefined"; } catch (e) { return false; } })`)
	return b.String()
}

// Detect evaluates every rule against the probe. For each technology the
// signals run in declared order, short-circuiting at the first
// high-confidence match; otherwise the best confidence seen is kept. A
// bare selector match stays low confidence unless another signal already
// matched, in which case it is promoted to medium.
func Detect(probe Probe) []types.TechnologyMatch {
	var matches []types.TechnologyMatch
	for _, cr := range compiled {
		if match, ok := evaluateRule(cr, probe); ok {
			matches = append(matches, match)
		}
	}
	return matches
}

func evaluateRule(cr compiledRule, probe Probe) (types.TechnologyMatch, bool) {
	match := types.TechnologyMatch{
		Name:     cr.rule.Name,
		Category: cr.rule.Category,
	}
	var best types.Confidence

	for _, cs := range cr.signals {
		conf, source, hit := evaluateSignal(cs, probe, best != "")
		if !hit {
			continue
		}
		if cs.version != nil && match.Version == "" && source != "" {
			if m := cs.version.FindStringSubmatch(source); len(m) > 1 {
				match.Version = m[1]
			}
		}
		if conf.Rank() > best.Rank() {
			best = conf
		}
		if best == types.ConfidenceHigh {
			break
		}
	}

	if best == "" {
		return types.TechnologyMatch{}, false
	}
	match.Confidence = best
	return match, true
}

// evaluateSignal reports the confidence and matched source string for one
// signal. corroborated indicates a prior signal already matched this rule.
func evaluateSignal(cs compiledSignal, probe Probe, corroborated bool) (types.Confidence, string, bool) {
	switch cs.signal.Kind {
	case SignalScriptSrc:
		for _, src := range probe.ScriptSrcs {
			if cs.pattern.MatchString(src) {
				return types.ConfidenceHigh, src, true
			}
		}
	case SignalInlineScript:
		for _, script := range probe.InlineScripts {
			if cs.pattern.MatchString(script) {
				return types.ConfidenceMedium, script, true
			}
		}
	case SignalGlobalVar:
		if probe.Globals[cs.signal.Pattern] {
			return types.ConfidenceHigh, cs.signal.Pattern, true
		}
	case SignalMetaTag:
		if probe.MetaTags != nil {
			if content, ok := probe.MetaTags[strings.ToLower(cs.signal.Pattern)]; ok {
				if cs.content == nil || cs.content.MatchString(content) {
					return types.ConfidenceHigh, content, true
				}
			}
		}
	case SignalSelector:
		if probe.HasSelector != nil && probe.HasSelector(cs.signal.Pattern) {
			if corroborated {
				return types.ConfidenceMedium, "", true
			}
			return types.ConfidenceLow, "", true
		}
	}
	return "", "", false
}
