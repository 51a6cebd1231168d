package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// tagRe matches {{#if v}} / {{#unless v}} (groups 1, 2), {{else}} / {{/if}} /
// {{/unless}} (group 3) and {{v}} (group 4).
var tagRe = regexp.MustCompile(`\{\{\s*(?:(#if|#unless)\s+([a-zA-Z_][a-zA-Z0-9_]*)|(else|/if|/unless)|([a-zA-Z_][a-zA-Z0-9_]*))\s*\}\}`)

// Vars maps template variable names to values.
type Vars map[string]string

// set reports whether name holds a non-empty value.
func (v Vars) set(name string) bool { return v[name] != "" }

// node is a piece of a parsed template: literal text, a variable, or a
// conditional section with optional else branch.
type node struct {
	text   string
	name   string
	isVar  bool
	negate bool
	then   []node
	els    []node
}

// Render expands {{variable}} placeholders and conditional sections:
// {{#if v}}...{{else}}...{{/if}} and {{#unless v}}...{{/unless}}. A variable
// counts as set when it is non-empty. Values are inserted as-is and never
// re-expanded, so source code and compiler output can contain anything.
// Variables inside a branch that is not taken need not be defined.
func Render(tmpl string, vars Vars) (string, error) {
	nodes, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}
	var (
		b       strings.Builder
		missing []string
	)
	renderNodes(&b, nodes, vars, &missing)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return b.String(), nil
}

func renderNodes(b *strings.Builder, nodes []node, vars Vars, missing *[]string) {
	for _, n := range nodes {
		switch {
		case n.isVar:
			val, ok := vars[n.name]
			if !ok {
				*missing = append(*missing, n.name)
				continue
			}
			b.WriteString(val)
		case n.name != "":
			if vars.set(n.name) != n.negate {
				renderNodes(b, n.then, vars, missing)
			} else {
				renderNodes(b, n.els, vars, missing)
			}
		default:
			b.WriteString(n.text)
		}
	}
}

// section is an open conditional while parsing.
type section struct {
	tag    string
	node   node
	inElse bool
}

func parseTemplate(tmpl string) ([]node, error) {
	var (
		root  []node
		stack []*section
	)
	emit := func(n node) {
		if len(stack) == 0 {
			root = append(root, n)
			return
		}
		top := stack[len(stack)-1]
		if top.inElse {
			top.node.els = append(top.node.els, n)
		} else {
			top.node.then = append(top.node.then, n)
		}
	}

	pos := 0
	for _, loc := range tagRe.FindAllStringSubmatchIndex(tmpl, -1) {
		if loc[0] > pos {
			emit(node{text: tmpl[pos:loc[0]]})
		}
		raw := tmpl[loc[0]:loc[1]]
		pos = loc[1]

		group := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return tmpl[loc[2*i]:loc[2*i+1]]
		}
		opener, name, closer, varName := group(1), group(2), group(3), group(4)

		switch {
		case varName != "":
			emit(node{name: varName, isVar: true})
		case opener != "":
			stack = append(stack, &section{tag: opener[1:], node: node{name: name, negate: opener == "#unless"}})
		case closer == "else":
			if len(stack) == 0 || stack[len(stack)-1].inElse {
				return nil, fmt.Errorf("dangling {{else}}")
			}
			stack[len(stack)-1].inElse = true
		default:
			if len(stack) == 0 || stack[len(stack)-1].tag != closer[1:] {
				return nil, fmt.Errorf("dangling %s without matching opening tag", raw)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			emit(top.node)
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, fmt.Errorf("unclosed conditional block: {{#%s %s}}", top.tag, top.node.name)
	}
	if pos < len(tmpl) {
		emit(node{text: tmpl[pos:]})
	}
	return root, nil
}

// LoadTemplate returns the template named name. Lookup order: the project
// directory (workdir/templates/name), the user template directory
// (~/.tutor/templates/name), then the compiled-in builtin.
func LoadTemplate(name string, workdir string) (string, error) {
	if filepath.IsAbs(name) || strings.Contains(filepath.ToSlash(name), "..") {
		return "", fmt.Errorf("template name %q must be a plain relative name", name)
	}

	if workdir != "" {
		if data, err := os.ReadFile(filepath.Join(workdir, "templates", name)); err == nil {
			return string(data), nil
		}
	}
	if dir := userTemplateDir(); dir != "" {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			return string(data), nil
		}
	}
	if tmpl, ok := builtinTemplates[name]; ok {
		return tmpl, nil
	}
	return "", fmt.Errorf("template %q not found", name)
}

// userTemplateDir returns ~/.tutor/templates, or "" without a home directory.
func userTemplateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tutor", "templates")
}

// InstallBuiltinTemplates writes the builtin templates to ~/.tutor/templates
// for editing. Existing files are left alone. It returns the paths written.
func InstallBuiltinTemplates() ([]string, error) {
	dir := userTemplateDir()
	if dir == "" {
		return nil, fmt.Errorf("could not determine home directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create templates dir: %w", err)
	}

	var written []string
	for _, name := range BuiltinNames() {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeAtomic(path, []byte(builtinTemplates[name])); err != nil {
			return written, fmt.Errorf("write template %q: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
