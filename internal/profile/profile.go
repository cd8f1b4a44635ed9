// Package profile provides Language Profiles: declarative tables telling the
// chunker which node kinds are containers, how to name them and which child
// holds their body. Profiles are compiled once into a kind lookup table.
package profile

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ricesearch/rice-chunk/internal/chunk"
	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// ContainerRule describes a group of container kinds sharing identifier
// and body rules.
type ContainerRule struct {
	Kinds []string `yaml:"kinds" json:"kinds"`
	// Identifier is one of "field:<name>" (default "field:name"),
	// "declarator", "name", "first_line" or "none".
	Identifier string `yaml:"identifier,omitempty" json:"identifier,omitempty"`
	// Body is the grammar field holding the nested body, if any.
	Body string `yaml:"body,omitempty" json:"body,omitempty"`
}

// Definition is the declarative, YAML-loadable form of a profile.
type Definition struct {
	Name       string   `yaml:"name" json:"name"`
	Aliases    []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	// Parser selects the parser used to build trees; defaults to Name.
	Parser     string          `yaml:"parser,omitempty" json:"parser,omitempty"`
	Containers []ContainerRule `yaml:"containers" json:"containers"`
	Leaves     []string        `yaml:"leaves,omitempty" json:"leaves,omitempty"`
	// ErrorKinds defaults to tree-sitter's "ERROR".
	ErrorKinds []string `yaml:"error_kinds,omitempty" json:"error_kinds,omitempty"`
	// Kinds, when set, is the full set of kinds the profile knows. Kinds
	// outside it are reported as unsupported constructs.
	Kinds []string `yaml:"kinds,omitempty" json:"kinds,omitempty"`
}

type identKind uint8

const (
	identField identKind = iota
	identDeclarator
	identName
	identFirstLine
	identNone
)

type identRule struct {
	kind  identKind
	field string
}

func parseIdentRule(s string) (identRule, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return identRule{kind: identField, field: "name"}, nil
	case strings.HasPrefix(s, "field:"):
		field := strings.TrimSpace(strings.TrimPrefix(s, "field:"))
		if field == "" {
			return identRule{}, fmt.Errorf("identifier rule %q names no field", s)
		}
		return identRule{kind: identField, field: field}, nil
	case s == "declarator":
		return identRule{kind: identDeclarator}, nil
	case s == "name":
		return identRule{kind: identName}, nil
	case s == "first_line":
		return identRule{kind: identFirstLine}, nil
	case s == "none":
		return identRule{kind: identNone}, nil
	default:
		return identRule{}, fmt.Errorf("unknown identifier rule %q", s)
	}
}

type kindRule struct {
	class chunk.Class
	ident identRule
	body  string
}

// Profile is a compiled Definition. It implements chunk.Profile and is
// safe for concurrent use.
type Profile struct {
	def      Definition
	rules    map[string]kindRule
	universe map[string]struct{}
}

var _ chunk.Profile = (*Profile)(nil)

// Compile validates def and resolves its rules into a lookup table.
func Compile(def Definition) (*Profile, error) {
	var errs []string
	def.Name = strings.ToLower(strings.TrimSpace(def.Name))
	if def.Name == "" {
		errs = append(errs, "name is required")
	}
	if len(def.ErrorKinds) == 0 {
		def.ErrorKinds = []string{"ERROR"}
	}

	rules := make(map[string]kindRule)
	add := func(kind string, r kindRule) {
		if kind == "" {
			errs = append(errs, "empty node kind")
			return
		}
		if prev, dup := rules[kind]; dup {
			errs = append(errs, fmt.Sprintf("kind %q declared as both %s and %s", kind, prev.class, r.class))
			return
		}
		rules[kind] = r
	}

	for i, c := range def.Containers {
		if len(c.Kinds) == 0 {
			errs = append(errs, fmt.Sprintf("container rule %d lists no kinds", i))
		}
		ident, err := parseIdentRule(c.Identifier)
		if err != nil {
			errs = append(errs, err.Error())
		}
		for _, k := range c.Kinds {
			add(k, kindRule{class: chunk.ClassContainer, ident: ident, body: c.Body})
		}
	}
	for _, k := range def.Leaves {
		add(k, kindRule{class: chunk.ClassLeaf})
	}
	for _, k := range def.ErrorKinds {
		add(k, kindRule{class: chunk.ClassError})
	}

	if len(errs) > 0 {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid profile %q: %s", def.Name, strings.Join(errs, "; ")))
	}

	p := &Profile{def: def, rules: rules}
	if len(def.Kinds) > 0 {
		p.universe = make(map[string]struct{}, len(def.Kinds)+len(rules))
		for _, k := range def.Kinds {
			p.universe[k] = struct{}{}
		}
		for k := range rules {
			p.universe[k] = struct{}{}
		}
	}
	return p, nil
}

// WithKinds returns a profile whose universe is kinds plus the kinds its
// rules name, so Classify reports every other kind as unknown. A profile
// that declares its own universe, or an empty kinds list, is returned
// unchanged.
func (p *Profile) WithKinds(kinds []string) *Profile {
	if p.universe != nil || len(kinds) == 0 {
		return p
	}
	bound := &Profile{def: p.def, rules: p.rules}
	bound.universe = make(map[string]struct{}, len(kinds)+len(p.rules))
	for _, k := range kinds {
		bound.universe[k] = struct{}{}
	}
	for k := range p.rules {
		bound.universe[k] = struct{}{}
	}
	return bound
}

// MustCompile is like Compile but panics on an invalid definition.
func MustCompile(def Definition) *Profile {
	p, err := Compile(def)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Profile) Name() string { return p.def.Name }

// Parser returns the name of the parser that builds trees for this profile.
func (p *Profile) Parser() string {
	if p.def.Parser != "" {
		return strings.ToLower(p.def.Parser)
	}
	return p.def.Name
}

func (p *Profile) Aliases() []string    { return append([]string(nil), p.def.Aliases...) }
func (p *Profile) Extensions() []string { return append([]string(nil), p.def.Extensions...) }

// Definition returns a copy of the source definition.
func (p *Profile) Definition() Definition {
	d := p.def
	d.Containers = append([]ContainerRule(nil), p.def.Containers...)
	return d
}

// Classify implements chunk.Profile.
func (p *Profile) Classify(kind string) chunk.Class {
	if r, ok := p.rules[kind]; ok {
		return r.class
	}
	if p.universe != nil {
		if _, ok := p.universe[kind]; !ok {
			return chunk.ClassUnknown
		}
	}
	return chunk.ClassStructural
}

// Identifier implements chunk.Profile.
func (p *Profile) Identifier(n chunk.SyntaxNode, src []byte) (string, bool) {
	r, ok := p.rules[n.Kind()]
	if !ok || r.class != chunk.ClassContainer {
		return "", false
	}

	switch r.ident.kind {
	case identField:
		return nodeText(childByField(n, r.ident.field), src)
	case identDeclarator:
		return declaratorName(n, src)
	case identName:
		if nn, ok := n.(chunk.NamedNode); ok {
			name := strings.TrimSpace(nn.NodeName())
			return name, name != ""
		}
		return "", false
	case identFirstLine:
		return nodeText(n, src)
	default:
		return "", false
	}
}

// Body implements chunk.Profile.
func (p *Profile) Body(n chunk.SyntaxNode) int {
	r, ok := p.rules[n.Kind()]
	if !ok || r.body == "" {
		return -1
	}
	fn, ok := n.(chunk.FieldNode)
	if !ok {
		return -1
	}
	for i := 0; i < n.ChildCount(); i++ {
		if fn.FieldNameForChild(i) == r.body {
			return i
		}
	}
	return -1
}

func childByField(n chunk.SyntaxNode, field string) chunk.SyntaxNode {
	if fn, ok := n.(chunk.FieldNode); ok {
		return fn.ChildByField(field)
	}
	return nil
}

// nameKinds terminate a declarator chain.
var nameKinds = map[string]bool{
	"identifier":           true,
	"field_identifier":     true,
	"qualified_identifier": true,
	"destructor_name":      true,
	"operator_name":        true,
	"type_identifier":      true,
	"template_function":    true,
}

const maxDeclaratorDepth = 16

// declaratorName follows the C/C++ declarator chain of a function
// definition down to the declared name.
func declaratorName(n chunk.SyntaxNode, src []byte) (string, bool) {
	cur := childByField(n, "declarator")
	for depth := 0; cur != nil && depth < maxDeclaratorDepth; depth++ {
		if nameKinds[cur.Kind()] {
			return nodeText(cur, src)
		}
		next := childByField(cur, "declarator")
		if next == nil {
			next = declaratorChild(cur)
		}
		cur = next
	}
	return "", false
}

// declaratorChild finds a nested declarator or name among the children of
// declarators that carry no declarator field, such as reference_declarator.
func declaratorChild(n chunk.SyntaxNode) chunk.SyntaxNode {
	for i := 0; i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if nameKinds[c.Kind()] || strings.HasSuffix(c.Kind(), "_declarator") {
			return c
		}
	}
	return nil
}

func nodeText(n chunk.SyntaxNode, src []byte) (string, bool) {
	if n == nil || n.StartByte() < 0 || n.EndByte() > len(src) || n.EndByte() <= n.StartByte() {
		return "", false
	}
	text := src[n.StartByte():n.EndByte()]
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	s := strings.TrimSpace(string(text))
	return s, s != ""
}
