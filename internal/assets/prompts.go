// Package assets provides embedded static assets for the application.
//
// Prompt templates and the OpenAPI document are stored as files next to
// this package and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed prompts/classify-sensitivity.txt
var classifySensitivityTemplate string

//go:embed openapi.json
var openAPITemplate string

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	classifyPromptTmpl = template.Must(template.New("classify").Parse(classifySensitivityTemplate))
	openAPITmpl        = template.Must(template.New("openapi").Parse(openAPITemplate))
)

// RenderClassifyPrompt renders the instruction sent alongside each image
// to a generative classifier. labels are the class names it must score.
func RenderClassifyPrompt(labels []string) string {
	return renderTemplate(classifyPromptTmpl, struct{ Labels []string }{labels})
}

// RenderOpenAPI renders the service's OpenAPI document for version.
func RenderOpenAPI(version string) []byte {
	return []byte(renderTemplate(openAPITmpl, struct{ Version string }{version}))
}

// renderTemplate executes a pre-parsed template. Execution errors are not
// expected with these templates; whatever rendered is returned.
func renderTemplate(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
