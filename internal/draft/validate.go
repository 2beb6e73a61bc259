package draft

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateFrontmatter checks the fields every draft relies on: a non-empty
// title, tags as a list and publish as a boolean.
func ValidateFrontmatter(fm map[string]any) error {
	errs := validation.Errors{}
	if title, _ := fm["title"].(string); title == "" {
		errs["title"] = errors.New("cannot be blank")
	}
	if tags, ok := fm["tags"]; ok && tags != nil {
		switch tags.(type) {
		case []any, []string:
		default:
			errs["tags"] = errors.New("must be a list")
		}
	}
	if p, ok := fm["publish"]; ok && p != nil {
		if _, isBool := p.(bool); !isBool {
			errs["publish"] = errors.New("must be a boolean")
		}
	}
	return errs.Filter()
}
