/******************************************************************************
 *
 *  Description :
 *
 *    Content filter: case-insensitive substring matching against a fixed
 *    denylist. Stateless.
 *
 *****************************************************************************/

package main

import "strings"

// Denylist applied when the config does not provide one.
var defaultForbiddenWords = []string{"spam", "hack", "virus", "malware", "phishing", "scam"}

type contentFilter struct {
	// Already lowercased.
	words []string
}

func newContentFilter(words []string) *contentFilter {
	if words == nil {
		words = defaultForbiddenWords
	}
	cf := &contentFilter{words: make([]string, 0, len(words))}
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			cf.words = append(cf.words, w)
		}
	}
	return cf
}

// allowed reports whether content is free of denylisted substrings.
func (cf *contentFilter) allowed(content string) bool {
	content = strings.ToLower(content)
	for _, w := range cf.words {
		if strings.Contains(content, w) {
			return false
		}
	}
	return true
}
