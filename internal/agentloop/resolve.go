package agentloop

import "strings"

// ResolveToolName matches a model-requested name against the permitted tool
// list, in order: exact match, suffix match (covering "server/name" and
// "server__name" namespacing), short-name match (the requested name equals
// a candidate's final path/underscore segment), and finally substring
// match. The substring tier is intentionally fuzzy: weak text-emulated
// models frequently paraphrase a tool's name, and a missed match means the
// turn is wasted on a tool-not-found round trip instead of the call it
// obviously meant.
//
// Returns the matched candidate name and true, or "" and false if nothing
// in candidates matches by any tier.
func ResolveToolName(requested string, candidates []string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" || len(candidates) == 0 {
		return "", false
	}

	for _, c := range candidates {
		if c == requested {
			return c, true
		}
	}

	lower := strings.ToLower(requested)

	for _, c := range candidates {
		cl := strings.ToLower(c)
		if strings.HasSuffix(cl, "/"+lower) || strings.HasSuffix(cl, "__"+lower) {
			return c, true
		}
	}

	for _, c := range candidates {
		if shortName(c) == lower {
			return c, true
		}
	}

	for _, c := range candidates {
		cl := strings.ToLower(c)
		if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
			return c, true
		}
	}

	return "", false
}

// shortName returns a candidate tool name's final segment after the last
// "/", "__", or "_", lowercased — the part a model is most likely to
// paraphrase to when it drops server namespacing.
func shortName(name string) string {
	name = strings.ToLower(name)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "__"); i >= 0 {
		name = name[i+2:]
	} else if i := strings.LastIndex(name, "_"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
