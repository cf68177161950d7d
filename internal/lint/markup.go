// Package lint checks fragments for unbalanced markup. It never blocks
// generation; the check command reports its findings.
package lint

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// IssueKind classifies a markup problem.
type IssueKind string

const (
	// IssueUnclosed is an element that is never closed.
	IssueUnclosed IssueKind = "unclosed"
	// IssueUnexpectedClose is a closing tag with no matching open element.
	IssueUnexpectedClose IssueKind = "unexpected-close"
)

// Issue is one problem found in a fragment.
type Issue struct {
	Key     string    `json:"key" yaml:"key"`
	Kind    IssueKind `json:"kind" yaml:"kind"`
	Tag     string    `json:"tag" yaml:"tag"`
	Message string    `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Key, i.Message)
}

// voidElements never have closing tags.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// optionalClose lists elements whose end tag may be omitted.
var optionalClose = map[string]bool{
	"li": true, "p": true, "dt": true, "dd": true, "option": true,
	"tr": true, "td": true, "th": true, "thead": true, "tbody": true,
	"tfoot": true, "colgroup": true, "optgroup": true,
	"html": true, "head": true, "body": true,
}

// Check tokenizes content and reports unclosed elements and stray closing
// tags. Self-closing and void elements are ignored.
func Check(key, content string) []Issue {
	var issues []Issue
	var stack []string

	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				issues = append(issues, Issue{
					Key:     key,
					Kind:    IssueUnclosed,
					Message: fmt.Sprintf("tokenizer error: %v", z.Err()),
				})
			}
			for i := len(stack) - 1; i >= 0; i-- {
				if optionalClose[stack[i]] {
					continue
				}
				issues = append(issues, Issue{
					Key:     key,
					Kind:    IssueUnclosed,
					Tag:     stack[i],
					Message: fmt.Sprintf("<%s> is never closed", stack[i]),
				})
			}
			return issues

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if !voidElements[tag] {
				stack = append(stack, tag)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}

			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == tag {
					idx = i
					break
				}
			}
			if idx < 0 {
				issues = append(issues, Issue{
					Key:     key,
					Kind:    IssueUnexpectedClose,
					Tag:     tag,
					Message: fmt.Sprintf("</%s> has no matching open tag", tag),
				})
				continue
			}
			for _, open := range stack[idx+1:] {
				if optionalClose[open] {
					continue
				}
				issues = append(issues, Issue{
					Key:     key,
					Kind:    IssueUnclosed,
					Tag:     open,
					Message: fmt.Sprintf("<%s> is closed implicitly by </%s>", open, tag),
				})
			}
			stack = stack[:idx]
		}
	}
}
