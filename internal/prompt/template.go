// Package prompt loads YAML prompt templates and resolves them into prompts,
// frontmatter and image keywords.
package prompt

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Variable is a named placeholder. In YAML it is either a bare name or a
// mapping with name, required, default and description.
type Variable struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool    `yaml:"required,omitempty" json:"required,omitempty"`
	Default     *string `yaml:"default,omitempty" json:"default,omitempty"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (v *Variable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v.Name = node.Value
		return nil
	}
	type plain Variable
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = Variable(p)
	return nil
}

// Template is one prompt template file.
type Template struct {
	Name                string         `yaml:"name"`
	Description         string         `yaml:"description"`
	Language            string         `yaml:"language"`
	Version             string         `yaml:"version"`
	System              string         `yaml:"system"`
	Prompt              string         `yaml:"prompt"`
	Variables           []Variable     `yaml:"variables"`
	FrontmatterTemplate map[string]any `yaml:"frontmatter_template"`
	ImageKeywords       []string       `yaml:"image_keywords"`
}

// Validate checks the required fields.
func (t Template) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.Prompt, validation.Required),
		validation.Field(&t.Variables),
	)
}

// Validate checks that the variable is named.
func (v Variable) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Name, validation.Required),
	)
}

// Info is the listing view of a template.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Version     string `json:"version"`
}

// Metadata describes a template's inputs and capabilities.
type Metadata struct {
	Info
	Variables       []Variable `json:"variables"`
	HasImageSupport bool       `json:"has_image_support"`
	HasFrontmatter  bool       `json:"has_frontmatter"`
}

func (t Template) info(id string) Info {
	i := Info{ID: id, Name: t.Name, Description: t.Description, Language: t.Language, Version: t.Version}
	if i.Description == "" {
		i.Description = "No description"
	}
	if i.Language == "" {
		i.Language = "ru"
	}
	if i.Version == "" {
		i.Version = "1.0"
	}
	return i
}
