/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package plaintext turns the inline markup bank feeds put in narrations into plain text.
package plaintext

import (
	"strings"

	"golang.org/x/net/html"
)

var lineBreakTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var skippedTags = map[string]bool{"script": true, "style": true}

// FromHTML returns the text content of an HTML fragment.
// Entities are unescaped, block tags and <br> become line breaks, script and style bodies are dropped,
// and whitespace is collapsed inside each line. Empty lines are removed.
//
// Parameters:
// - fragment string: The markup to convert. Plain text passes through with whitespace normalized.
//
// Returns:
// - string: The normalized plain text.
func FromHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return normalize(fragment)
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return normalize(b.String())
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedTags[tag] {
				skipDepth++
			}
			if lineBreakTags[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedTags[tag] && skipDepth > 0 {
				skipDepth--
			}
			if lineBreakTags[tag] {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if lineBreakTags[string(name)] {
				b.WriteByte('\n')
			}
		}
	}
}

func normalize(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
