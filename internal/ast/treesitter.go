//go:build cgo

package ast

import (
	"context"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// treeSitterParser caches grammars; a sitter.Parser is not safe for
// concurrent use, so one is created per Parse call.
type treeSitterParser struct {
	grammars map[string]*sitter.Language
	mu       sync.Mutex
}

func newCodeParser() Parser {
	return &treeSitterParser{
		grammars: make(map[string]*sitter.Language),
	}
}

func (p *treeSitterParser) getLanguage(language string) *sitter.Language {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lang, ok := p.grammars[language]; ok {
		return lang
	}

	var lang *sitter.Language
	switch language {
	case LangGo:
		lang = golang.GetLanguage()
	case LangPython:
		lang = python.GetLanguage()
	case LangTypeScript:
		lang = typescript.GetLanguage()
	case LangTSX:
		lang = tsx.GetLanguage()
	case LangJavaScript:
		lang = javascript.GetLanguage()
	case LangJava:
		lang = java.GetLanguage()
	case LangCSharp:
		lang = csharp.GetLanguage()
	case LangCPP:
		lang = cpp.GetLanguage()
	case LangC:
		lang = c.GetLanguage()
	case LangRust:
		lang = rust.GetLanguage()
	default:
		return nil
	}

	p.grammars[language] = lang
	return lang
}

func (p *treeSitterParser) Parse(ctx context.Context, content []byte, language string) (*Node, error) {
	lang := p.getLanguage(language)
	if lang == nil {
		return nil, unsupported(language, p)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, apperrors.ParseError("tree-sitter parse failed", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, apperrors.ParseError("failed to parse content", nil)
	}

	return convertNode(root, ""), nil
}

var kindParser = &treeSitterParser{grammars: make(map[string]*sitter.Language)}

// grammarKinds lists the named node types of a grammar, which are the
// only types convertNode keeps, plus the ERROR node.
func grammarKinds(language string) []string {
	lang := kindParser.getLanguage(language)
	if lang == nil {
		return nil
	}
	seen := map[string]struct{}{"ERROR": {}}
	for i := uint32(0); i < lang.SymbolCount(); i++ {
		sym := sitter.Symbol(i)
		if lang.SymbolType(sym) == sitter.SymbolTypeRegular {
			seen[lang.SymbolName(sym)] = struct{}{}
		}
	}
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// convertNode copies the named nodes of a tree-sitter tree. Anonymous
// tokens (keywords, punctuation) become trivia between their siblings.
func convertNode(n *sitter.Node, field string) *Node {
	node := &Node{
		Type:      n.Type(),
		Field:     field,
		Start:     int(n.StartByte()),
		End:       int(n.EndByte()),
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		node.Children = append(node.Children, convertNode(child, n.FieldNameForChild(i)))
	}
	return node
}

func (p *treeSitterParser) SupportsLanguage(language string) bool {
	return p.getLanguage(language) != nil
}

func (p *treeSitterParser) Languages() []string {
	return append([]string(nil), GrammarLanguages...)
}
