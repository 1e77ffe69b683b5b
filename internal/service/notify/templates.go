package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFiles embed.FS

// TemplatePasswordReset names the password reset email
const TemplatePasswordReset = "password_reset"

// TemplateData is the input of every email template
type TemplateData struct {
	RecipientName string
	DocumentTitle string
	ActorName     string
	Comment       string
	URL           string
}

type templateSource struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Catalog holds the compiled email templates
type Catalog struct {
	templates map[string]compiled
}

// LoadCatalog parses the embedded template catalogue
func LoadCatalog() (*Catalog, error) {
	data, err := templateFiles.ReadFile("templates/emails.yaml")
	if err != nil {
		return nil, fmt.Errorf("read email templates: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML template catalogue
func ParseCatalog(data []byte) (*Catalog, error) {
	var sources map[string]templateSource
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("unmarshal email templates: %w", err)
	}

	c := &Catalog{templates: make(map[string]compiled, len(sources))}
	for name, src := range sources {
		subject, err := template.New(name + ".subject").Option("missingkey=error").Parse(src.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=error").Parse(src.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		c.templates[name] = compiled{subject: subject, body: body}
	}
	return c, nil
}

// Render produces the subject and body of the named template
func (c *Catalog) Render(name string, data TemplateData) (subject, body string, err error) {
	t, ok := c.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := t.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return subject, strings.TrimSpace(buf.String()) + "\n", nil
}
