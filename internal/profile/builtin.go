package profile

// Built-in language names.
const (
	LangPython     = "python"
	LangJava       = "java"
	LangCSharp     = "csharp"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangJavaScript = "javascript"
	LangCPP        = "cpp"
	LangC          = "c"
	LangGo         = "go"
	LangRust       = "rust"
	LangMarkdown   = "markdown"
	LangPlaintext  = "plaintext"
)

// Builtins returns the definitions shipped with the binary. Each call
// returns fresh values.
func Builtins() []Definition {
	return []Definition{
		python(),
		java(),
		csharp(),
		typescript(LangTypeScript, []string{"ts"}, []string{".ts", ".mts", ".cts"}),
		typescript(LangTSX, nil, []string{".tsx"}),
		javascript(),
		cpp(),
		c(),
		golang(),
		rust(),
		markdown(),
		plaintext(),
	}
}

func python() Definition {
	return Definition{
		Name:       LangPython,
		Aliases:    []string{"py"},
		Extensions: []string{".py", ".pyi"},
		Containers: []ContainerRule{
			{Kinds: []string{"class_definition", "function_definition"}, Body: "body"},
			{Kinds: []string{"lambda"}, Identifier: "none"},
		},
		Leaves: []string{"string", "concatenated_string", "comment"},
	}
}

func java() Definition {
	return Definition{
		Name:       LangJava,
		Extensions: []string{".java"},
		Containers: []ContainerRule{
			{
				Kinds: []string{
					"class_declaration", "interface_declaration", "enum_declaration",
					"record_declaration", "annotation_type_declaration",
				},
				Body: "body",
			},
			{Kinds: []string{"method_declaration", "constructor_declaration"}, Body: "body"},
			{Kinds: []string{"lambda_expression"}, Identifier: "none", Body: "body"},
		},
		Leaves: []string{"string_literal", "text_block", "line_comment", "block_comment"},
	}
}

func csharp() Definition {
	return Definition{
		Name:       LangCSharp,
		Aliases:    []string{"c#", "cs"},
		Extensions: []string{".cs"},
		Containers: []ContainerRule{
			{Kinds: []string{"namespace_declaration"}, Body: "body"},
			{Kinds: []string{"file_scoped_namespace_declaration"}},
			{
				Kinds: []string{
					"class_declaration", "interface_declaration", "struct_declaration",
					"record_declaration", "enum_declaration",
				},
				Body: "body",
			},
			{
				Kinds: []string{
					"method_declaration", "constructor_declaration", "destructor_declaration",
					"local_function_statement",
				},
				Body: "body",
			},
			{Kinds: []string{"lambda_expression", "anonymous_method_expression"}, Identifier: "none", Body: "body"},
		},
		Leaves: []string{
			"string_literal", "verbatim_string_literal", "raw_string_literal",
			"interpolated_string_expression", "comment",
		},
	}
}

func typescript(name string, aliases, extensions []string) Definition {
	return Definition{
		Name:       name,
		Aliases:    aliases,
		Extensions: extensions,
		Containers: []ContainerRule{
			{
				Kinds: []string{
					"class_declaration", "abstract_class_declaration",
					"interface_declaration", "enum_declaration",
				},
				Body: "body",
			},
			{Kinds: []string{"internal_module", "module"}, Body: "body"},
			{
				Kinds: []string{
					"function_declaration", "generator_function_declaration",
					"function_expression", "method_definition",
				},
				Body: "body",
			},
			{Kinds: []string{"arrow_function"}, Identifier: "none", Body: "body"},
		},
		Leaves: []string{"string", "template_string", "regex", "comment"},
	}
}

func javascript() Definition {
	return Definition{
		Name:       LangJavaScript,
		Aliases:    []string{"js", "jsx"},
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Containers: []ContainerRule{
			{Kinds: []string{"class_declaration"}, Body: "body"},
			{
				Kinds: []string{
					"function_declaration", "generator_function_declaration",
					"function_expression", "method_definition",
				},
				Body: "body",
			},
			{Kinds: []string{"arrow_function"}, Identifier: "none", Body: "body"},
		},
		Leaves: []string{"string", "template_string", "regex", "comment"},
	}
}

func cpp() Definition {
	return Definition{
		Name:       LangCPP,
		Aliases:    []string{"c++", "cxx"},
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
		Containers: []ContainerRule{
			{Kinds: []string{"namespace_definition"}, Body: "body"},
			{
				Kinds: []string{"class_specifier", "struct_specifier", "union_specifier", "enum_specifier"},
				Body:  "body",
			},
			{Kinds: []string{"function_definition"}, Identifier: "declarator", Body: "body"},
			{Kinds: []string{"lambda_expression"}, Identifier: "none", Body: "body"},
		},
		Leaves: []string{"string_literal", "raw_string_literal", "concatenated_string", "comment"},
	}
}

func c() Definition {
	return Definition{
		Name:       LangC,
		Extensions: []string{".c", ".h"},
		Containers: []ContainerRule{
			{Kinds: []string{"struct_specifier", "union_specifier", "enum_specifier"}, Body: "body"},
			{Kinds: []string{"function_definition"}, Identifier: "declarator", Body: "body"},
		},
		Leaves: []string{"string_literal", "concatenated_string", "comment"},
	}
}

func golang() Definition {
	return Definition{
		Name:       LangGo,
		Aliases:    []string{"golang"},
		Extensions: []string{".go"},
		Containers: []ContainerRule{
			{Kinds: []string{"function_declaration", "method_declaration"}, Body: "body"},
			{Kinds: []string{"type_spec"}},
			{Kinds: []string{"func_literal"}, Identifier: "none", Body: "body"},
		},
		Leaves: []string{"interpreted_string_literal", "raw_string_literal", "comment"},
	}
}

func rust() Definition {
	return Definition{
		Name:       LangRust,
		Aliases:    []string{"rs"},
		Extensions: []string{".rs"},
		Containers: []ContainerRule{
			{Kinds: []string{"mod_item", "trait_item", "struct_item", "enum_item", "function_item"}, Body: "body"},
			{Kinds: []string{"impl_item"}, Identifier: "field:type", Body: "body"},
			{Kinds: []string{"macro_definition"}},
			{Kinds: []string{"closure_expression"}, Identifier: "none", Body: "body"},
		},
		Leaves: []string{"string_literal", "raw_string_literal", "line_comment", "block_comment"},
	}
}

// markdown classifies the section trees built from goldmark documents:
// a section per heading, titled by the heading text.
func markdown() Definition {
	return Definition{
		Name:       LangMarkdown,
		Aliases:    []string{"md"},
		Extensions: []string{".md", ".markdown"},
		Containers: []ContainerRule{
			{Kinds: []string{"section"}, Identifier: "name"},
		},
		Leaves: []string{
			"heading", "paragraph", "fenced_code_block", "code_block", "html_block",
			"thematic_break", "blockquote", "list_item", "table", "text_block",
		},
	}
}

func plaintext() Definition {
	return Definition{
		Name:       LangPlaintext,
		Aliases:    []string{"text", "txt"},
		Extensions: []string{".txt", ".text", ".log"},
		Leaves:     []string{"line"},
	}
}
