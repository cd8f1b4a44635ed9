package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// Template selects the metadata attached to each record and the shape of
// its code window.
type Template string

const (
	TemplateNone         Template = "none"
	TemplateDefault      Template = "default"
	TemplateRepoEval     Template = "coderagbench-repoeval"
	TemplateSWEBenchLite Template = "coderagbench-swebench-lite"

	DefaultTemplate = TemplateDefault
)

const expansionFence = "'''"

// Templates lists the supported templates.
var Templates = []Template{TemplateNone, TemplateDefault, TemplateRepoEval, TemplateSWEBenchLite}

// ParseTemplate parses a template name. Empty selects the default.
func ParseTemplate(s string) (Template, error) {
	if s == "" {
		return DefaultTemplate, nil
	}
	for _, t := range Templates {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", errors.ValidationError(fmt.Sprintf("unsupported metadata template %q (want one of %v)", s, Templates))
}

// RepoInfo is repository-level context fed into the metadata templates.
type RepoInfo struct {
	// Repo names the repository, for coderagbench-repoeval.
	Repo string `json:"repo,omitempty"`
	// InstanceID prefixes record IDs for coderagbench-swebench-lite.
	InstanceID string `json:"instance_id,omitempty"`
}

// Metadata builds the metadata map for r under t.
func (t Template) Metadata(r *Record, info RepoInfo) map[string]any {
	switch t {
	case TemplateDefault:
		return map[string]any{
			"filepath":      r.Path,
			"chunk_size":    r.CoreSize,
			"line_count":    r.LineCount(),
			"start_line_no": r.StartLine,
			"end_line_no":   r.EndLine,
			"node_count":    r.NodeCount,
		}
	case TemplateRepoEval:
		return map[string]any{
			"fpath_tuple":   pathTuple(r.Path),
			"repo":          info.Repo,
			"chunk_size":    r.CoreSize,
			"line_count":    r.LineCount(),
			"start_line_no": r.StartLine,
			"end_line_no":   r.EndLine,
			"node_count":    r.NodeCount,
		}
	case TemplateSWEBenchLite:
		return map[string]any{
			"_id":   fmt.Sprintf("%s_%d-%d", info.InstanceID, r.StartLine, r.EndLine),
			"title": r.Path,
		}
	default:
		return map[string]any{}
	}
}

// headerPath is the file path shown in an expansion header.
func (t Template) headerPath(path string) string {
	switch t {
	case TemplateDefault, TemplateSWEBenchLite:
		return path
	case TemplateRepoEval:
		return strings.Join(pathTuple(path), "/")
	default:
		return ""
	}
}

// Expand prepends the expansion header to text: the file path and the
// rendered ancestor lines between ''' fences. Empty parts are omitted.
func (t Template) Expand(path, ancestors, text string) string {
	var sb strings.Builder
	sb.WriteString(expansionFence)
	sb.WriteByte('\n')
	if p := t.headerPath(path); p != "" {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	if ancestors != "" {
		sb.WriteString(ancestors)
		sb.WriteByte('\n')
	}
	sb.WriteString(expansionFence)
	sb.WriteByte('\n')
	sb.WriteString(text)
	return sb.String()
}

// CodeWindow is the downstream retrieval shape of r under t.
func (t Template) CodeWindow(r *Record) map[string]any {
	if t == TemplateSWEBenchLite {
		return map[string]any{
			"_id":   r.Metadata["_id"],
			"title": r.Metadata["title"],
			"text":  r.Content,
		}
	}
	return map[string]any{
		"content":  r.Content,
		"metadata": r.Metadata,
	}
}

func pathTuple(path string) []string {
	path = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "./")
	return strings.Split(path, "/")
}
