// Package assets provides the prompt templates sent to the generation model.
//
// Prompts are stored as text files under prompts/ and embedded at compile
// time so wording changes never touch Go code.
package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// --- Static prompts ---

//go:embed prompts/extraction.txt
var extractionPrompt string

//go:embed prompts/system-japanese.txt
var japaneseSystemPrompt string

//go:embed prompts/explanation-format.txt
var explanationFormat string

// ExtractionPrompt asks the model to transcribe the question text and the
// answer choices from the attached image.
var ExtractionPrompt = strings.TrimSpace(extractionPrompt)

// JapaneseSystemPrompt forces Japanese output. It is the system
// instruction for the translation and explanation calls.
var JapaneseSystemPrompt = strings.TrimSpace(japaneseSystemPrompt)

// ExplanationFormat is the fixed output layout optionally inserted into
// the explanation prompt.
var ExplanationFormat = strings.TrimSpace(explanationFormat)

// --- Dynamic prompt templates ---

//go:embed prompts/translation.txt
var translationTemplate string

//go:embed prompts/explanation.txt
var explanationTemplate string

// template.Must panics on malformed templates, so a bad edit fails at
// startup rather than mid-pipeline.
var (
	translationTmpl = template.Must(template.New("translation").Parse(translationTemplate))
	explanationTmpl = template.Must(template.New("explanation").Parse(explanationTemplate))
)

// PromptData holds the values injected into prompt templates.
type PromptData struct {
	// Text is the output of the previous pipeline step.
	Text string
	// Format is the output layout; empty disables it.
	Format string
}

// RenderTranslationPrompt wraps the extracted question for translation.
func RenderTranslationPrompt(extracted string) string {
	return renderTemplate(translationTmpl, PromptData{Text: extracted})
}

// RenderExplanationPrompt wraps the translated question for explanation.
// When withFormat is set, ExplanationFormat is inserted as the required
// output layout.
func RenderExplanationPrompt(translated string, withFormat bool) string {
	data := PromptData{Text: translated}
	if withFormat {
		data.Format = ExplanationFormat
	}
	return renderTemplate(explanationTmpl, data)
}

func renderTemplate(tmpl *template.Template, data PromptData) string {
	var buf bytes.Buffer
	// Execution cannot fail for these templates; whatever rendered is returned.
	_ = tmpl.Execute(&buf, data)
	return strings.TrimSpace(buf.String())
}
