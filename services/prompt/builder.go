package prompt

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"
)

// Builder renders a named prompt template against a set of variables.
// Rendering fails when the template references a variable that is absent.
type Builder struct {
	name string
	tmpl *template.Template
	vars []string
}

var templateFuncs = template.FuncMap{
	"metaValue": metaValue,
	"join":      strings.Join,
}

// NewBuilder parses a template. Parse errors are returned here rather than at
// render time.
func NewBuilder(name, text string) (*Builder, error) {
	tmpl, err := template.New(name).
		Funcs(templateFuncs).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	return &Builder{
		name: name,
		tmpl: tmpl,
		vars: collectVariables(tmpl.Tree),
	}, nil
}

// Name returns the template name
func (b *Builder) Name() string {
	return b.name
}

// RequiredVariables lists the top-level variables the template references
func (b *Builder) RequiredVariables() []string {
	out := make([]string, len(b.vars))
	copy(out, b.vars)
	return out
}

// Render executes the template. The same variables always render the same
// string.
func (b *Builder) Render(vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", b.name, err)
	}
	return sb.String(), nil
}

// metaValue reads a metadata entry as text, empty when absent
func metaValue(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func collectVariables(tree *parse.Tree) []string {
	if tree == nil || tree.Root == nil {
		return nil
	}
	seen := make(map[string]bool)
	walkNode(tree.Root, true, seen)

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// walkNode records field references made while dot is still the variable map.
// Inside range and with bodies dot is rebound, so only $ references count.
func walkNode(node parse.Node, topLevel bool, seen map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walkNode(child, topLevel, seen)
		}
	case *parse.ActionNode:
		walkNode(n.Pipe, topLevel, seen)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			walkNode(cmd, topLevel, seen)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			walkNode(arg, topLevel, seen)
		}
	case *parse.FieldNode:
		if topLevel && len(n.Ident) > 0 {
			seen[n.Ident[0]] = true
		}
	case *parse.ChainNode:
		walkNode(n.Node, topLevel, seen)
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			seen[n.Ident[1]] = true
		}
	case *parse.IfNode:
		walkNode(n.Pipe, topLevel, seen)
		walkNode(n.List, topLevel, seen)
		walkNode(n.ElseList, topLevel, seen)
	case *parse.RangeNode:
		walkNode(n.Pipe, topLevel, seen)
		walkNode(n.List, false, seen)
		walkNode(n.ElseList, topLevel, seen)
	case *parse.WithNode:
		walkNode(n.Pipe, topLevel, seen)
		walkNode(n.List, false, seen)
		walkNode(n.ElseList, topLevel, seen)
	}
}
