package prompt

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/compiletutor/internal/toolchain"
)

// Input is everything the analysis prompt is rendered from.
type Input struct {
	FileName  string
	Extension string
	// Source is nil when the file text is not available.
	Source  *string
	Outcome toolchain.Outcome
	// Exemplar, when set, is used instead of a catalog lookup.
	Exemplar *Exemplar
}

// Builder renders tutoring prompts from templates.
type Builder struct {
	analyze    string
	followUp   string
	structured bool
}

// NewBuilder creates a Builder from the builtin templates.
func NewBuilder(structured bool) *Builder {
	return &Builder{
		analyze:    builtinTemplates[AnalyzeTemplate],
		followUp:   builtinTemplates[FollowUpTemplate],
		structured: structured,
	}
}

// LoadBuilder creates a Builder whose templates may be overridden from workdir
// or ~/.tutor/templates.
func LoadBuilder(workdir string, structured bool) (*Builder, error) {
	analyze, err := LoadTemplate(AnalyzeTemplate, workdir)
	if err != nil {
		return nil, err
	}
	followUp, err := LoadTemplate(FollowUpTemplate, workdir)
	if err != nil {
		return nil, err
	}
	return &Builder{analyze: analyze, followUp: followUp, structured: structured}, nil
}

// Build renders the initial analysis prompt. Source and outcome text are
// passed through untruncated.
func (b *Builder) Build(in Input) (string, error) {
	vars := Vars{
		"file_name":  in.FileName,
		"extension":  in.Extension,
		"language":   languageName(in.Extension),
		"outcome":    in.Outcome.Describe(),
		"fence_lang": fenceLang(in.Extension),
	}

	if in.Source != nil {
		vars["source_text"] = *in.Source
		vars["fence"] = fenceFor(*in.Source)
	}

	switch {
	case in.Outcome.Kind == toolchain.KindUnsupported:
		vars["unsupported"] = "yes"
	case in.Outcome.Failed():
		vars["has_error"] = "yes"
	default:
		vars["no_error"] = "yes"
	}

	if in.Outcome.Kind == toolchain.KindCompileFailed {
		if d, ok := toolchain.FirstError(in.Outcome.Diagnostics); ok {
			vars["error_location"] = location(d)
		}
	}

	if b.structured && in.Outcome.Failed() {
		vars["structured"] = "yes"
		ex := in.Exemplar
		if ex == nil {
			if found, ok := exemplarFor(in.Outcome); ok {
				ex = &found
			}
		}
		if ex != nil {
			vars["exemplar_error"] = ex.Error
			vars["exemplar_meaning"] = ex.Meaning
			vars["exemplar_rule"] = ex.Rule
		}
	}

	return Render(b.analyze, vars)
}

// FollowUpInstructions renders the standing instructions sent with follow-up
// questions, where the prompt itself is empty.
func (b *Builder) FollowUpInstructions(fileName string, outcome *toolchain.Outcome) (string, error) {
	vars := Vars{"file_name": fileName}
	if outcome != nil {
		vars["outcome"] = outcome.Describe()
	}
	return Render(b.followUp, vars)
}

func exemplarFor(o toolchain.Outcome) (Exemplar, bool) {
	if d, ok := toolchain.FirstError(o.Diagnostics); ok {
		if ex, ok := Match(d.Message); ok {
			return ex, true
		}
	}
	return Match(o.Text)
}

func location(d toolchain.Diagnostic) string {
	if d.Column > 0 {
		return fmt.Sprintf("%s line %d, column %d: %s", d.File, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%s line %d: %s", d.File, d.Line, d.Message)
}

func languageName(ext string) string {
	if lang, ok := toolchain.LanguageFor(ext); ok {
		return string(lang)
	}
	if ext == "" {
		return "unknown"
	}
	return strings.TrimPrefix(ext, ".")
}

func fenceLang(ext string) string {
	switch lang, _ := toolchain.LanguageFor(ext); lang {
	case toolchain.LangC:
		return "c"
	case toolchain.LangCXX:
		return "cpp"
	}
	return ""
}

// fenceFor returns a tilde fence longer than any tilde run in src so the
// embedded source cannot close the block early.
func fenceFor(src string) string {
	longest, run := 0, 0
	for _, r := range src {
		if r == '~' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("~", n)
}
