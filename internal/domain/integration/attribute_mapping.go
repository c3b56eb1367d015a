package integration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// AttributeSet holds marketplace attribute keys and values ready to send
type AttributeSet map[string]string

// TransformFunc converts a local attribute value into the marketplace format
type TransformFunc func(value string) (string, error)

// AttributeRule maps one local attribute onto one marketplace attribute
type AttributeRule struct {
	LocalKey  string `mapstructure:"local_key" json:"local_key"`
	RemoteKey string `mapstructure:"remote_key" json:"remote_key"`
	// Transform names a transform: identity, upper, lower, trim, bool_yes_no,
	// grams_to_kg, cm_to_mm, prefix:<text>, suffix:<text>
	Transform string `mapstructure:"transform" json:"transform"`
	// Required rules reject the product when the local attribute is missing
	Required bool `mapstructure:"required" json:"required"`
}

// AttributeMappingResult is the outcome of applying an AttributeTable
type AttributeMappingResult struct {
	Attributes AttributeSet
	// Dropped lists local keys that have no rule
	Dropped []string
	// Failed lists local keys whose transform failed, with the reason
	Failed map[string]string
	// MissingRequired lists required local keys that were absent or failed
	MissingRequired []string
}

// Valid returns true if all required attributes were produced
func (r AttributeMappingResult) Valid() bool {
	return len(r.MissingRequired) == 0
}

// Err returns a validation error naming the missing required attributes
func (r AttributeMappingResult) Err() error {
	if r.Valid() {
		return nil
	}
	return fmt.Errorf("%w: missing required attributes: %s", ErrValidation, strings.Join(r.MissingRequired, ", "))
}

// AttributeTable is the declarative attribute mapping of one marketplace
type AttributeTable struct {
	Marketplace MarketplaceCode
	Rules       []AttributeRule
}

// NewAttributeTable validates transform names and builds a table
func NewAttributeTable(marketplace MarketplaceCode, rules []AttributeRule) (*AttributeTable, error) {
	for _, r := range rules {
		if r.LocalKey == "" || r.RemoteKey == "" {
			return nil, fmt.Errorf("attribute rule for %s: local and remote keys are required", marketplace)
		}
		if _, err := resolveTransform(r.Transform); err != nil {
			return nil, fmt.Errorf("attribute rule %s->%s: %w", r.LocalKey, r.RemoteKey, err)
		}
	}
	return &AttributeTable{Marketplace: marketplace, Rules: rules}, nil
}

// Apply translates local attributes. Unknown attributes and failed transforms
// are dropped and reported; they never fail the whole product on their own.
func (t *AttributeTable) Apply(local map[string]string) AttributeMappingResult {
	result := AttributeMappingResult{
		Attributes: make(AttributeSet),
		Failed:     make(map[string]string),
	}

	ruled := make(map[string]bool, len(t.Rules))
	for _, rule := range t.Rules {
		ruled[rule.LocalKey] = true

		value, ok := local[rule.LocalKey]
		if !ok || strings.TrimSpace(value) == "" {
			if rule.Required {
				result.MissingRequired = append(result.MissingRequired, rule.LocalKey)
			}
			continue
		}

		fn, err := resolveTransform(rule.Transform)
		if err == nil {
			value, err = fn(value)
		}
		if err != nil {
			result.Failed[rule.LocalKey] = err.Error()
			if rule.Required {
				result.MissingRequired = append(result.MissingRequired, rule.LocalKey)
			}
			continue
		}
		result.Attributes[rule.RemoteKey] = value
	}

	for key := range local {
		if !ruled[key] {
			result.Dropped = append(result.Dropped, key)
		}
	}
	sort.Strings(result.Dropped)
	return result
}

// ---------------------------------------------------------------------------
// Transforms
// ---------------------------------------------------------------------------

var builtinTransforms = map[string]TransformFunc{
	"":         func(v string) (string, error) { return v, nil },
	"identity": func(v string) (string, error) { return v, nil },
	"upper":    func(v string) (string, error) { return strings.ToUpper(v), nil },
	"lower":    func(v string) (string, error) { return strings.ToLower(v), nil },
	"trim":     func(v string) (string, error) { return strings.TrimSpace(v), nil },
	"bool_yes_no": func(v string) (string, error) {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "evet":
			return "Yes", nil
		case "0", "false", "no", "n", "hayır", "hayir":
			return "No", nil
		default:
			return "", fmt.Errorf("not a boolean: %q", v)
		}
	},
	"grams_to_kg": func(v string) (string, error) {
		return scaleDecimal(v, decimal.NewFromFloat(0.001))
	},
	"cm_to_mm": func(v string) (string, error) {
		return scaleDecimal(v, decimal.NewFromInt(10))
	},
}

func scaleDecimal(v string, factor decimal.Decimal) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return "", fmt.Errorf("not a number: %q", v)
	}
	return d.Mul(factor).String(), nil
}

func resolveTransform(name string) (TransformFunc, error) {
	if fn, ok := builtinTransforms[name]; ok {
		return fn, nil
	}
	if text, ok := strings.CutPrefix(name, "prefix:"); ok {
		return func(v string) (string, error) { return text + v, nil }, nil
	}
	if text, ok := strings.CutPrefix(name, "suffix:"); ok {
		return func(v string) (string, error) { return v + text, nil }, nil
	}
	return nil, fmt.Errorf("unknown attribute transform %q", name)
}
