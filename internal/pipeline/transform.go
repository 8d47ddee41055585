// internal/pipeline/transform.go
package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// TransformList is a sequence of string clean-up rules applied in order.
type TransformList []config.TransformRule

// defaultTitleTransforms run on every title after the source's own rules.
var defaultTitleTransforms = TransformList{
	{Type: "remove_html"},
	{Type: "normalize_spaces"},
}

// Apply applies all transformation rules in sequence to the input string
func (tl TransformList) Apply(input string) (string, error) {
	result := input
	for i, rule := range tl {
		var err error
		result, err = applyRule(rule, result)
		if err != nil {
			return "", fmt.Errorf("transform rule %d failed: %w", i, err)
		}
	}
	return result, nil
}

func applyRule(rule config.TransformRule, input string) (string, error) {
	switch rule.Type {
	case "trim":
		return strings.TrimSpace(input), nil

	case "normalize_spaces":
		return utils.CollapseSpaces(input), nil

	case "lowercase":
		return strings.ToLower(input), nil

	case "uppercase":
		return strings.ToUpper(input), nil

	case "remove_html":
		return htmlTag.ReplaceAllString(input, ""), nil

	case "strip_prefix":
		return strings.TrimSpace(strings.TrimPrefix(input, rule.Pattern)), nil

	case "strip_suffix":
		return strings.TrimSpace(strings.TrimSuffix(input, rule.Pattern)), nil

	case "regex":
		if rule.Pattern == "" {
			return "", fmt.Errorf("regex pattern is required")
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return "", fmt.Errorf("invalid regex pattern: %w", err)
		}
		return re.ReplaceAllString(input, rule.Replacement), nil

	default:
		return "", fmt.Errorf("unknown transform type: %s", rule.Type)
	}
}
