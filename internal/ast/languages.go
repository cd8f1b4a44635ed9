package ast

// Language constants used throughout the AST package
const (
	LangGo         = "go"
	LangPython     = "python"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangJavaScript = "javascript"
	LangJava       = "java"
	LangCSharp     = "csharp"
	LangCPP        = "cpp"
	LangC          = "c"
	LangRust       = "rust"
	LangMarkdown   = "markdown"
	LangPlaintext  = "plaintext"
)

// GrammarLanguages lists the languages with a tree-sitter grammar.
var GrammarLanguages = []string{
	LangC,
	LangCPP,
	LangCSharp,
	LangGo,
	LangJava,
	LangJavaScript,
	LangPython,
	LangRust,
	LangTSX,
	LangTypeScript,
}
