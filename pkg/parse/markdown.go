package parse

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type CodeBlock struct {
	Code     string
	Language string
}

// ExtractCodeBlocks returns the fenced code blocks of a markdown document in
// order of appearance. When languages are given, only blocks whose info string
// matches one of them (case-insensitive) are returned.
func ExtractCodeBlocks(markdownText string, languages ...string) ([]CodeBlock, error) {
	var blocks []CodeBlock
	source := []byte(markdownText)

	wanted := map[string]bool{}
	for _, l := range languages {
		wanted[strings.ToLower(l)] = true
	}

	document := goldmark.DefaultParser().Parse(text.NewReader(source))
	err := ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(cb.Language(source)))
		if len(wanted) > 0 && !wanted[lang] {
			return ast.WalkSkipChildren, nil
		}
		code := ""
		if cb.Lines().Len() > 0 {
			start := cb.Lines().At(0).Start
			stop := cb.Lines().At(cb.Lines().Len() - 1).Stop
			code = string(source[start:stop])
		}
		blocks = append(blocks, CodeBlock{Code: code, Language: lang})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	return blocks, nil
}
