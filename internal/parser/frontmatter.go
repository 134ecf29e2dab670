package parser

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultgraph/internal/models"
)

// FieldError is one violated frontmatter field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors lists every violated field of a frontmatter block.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.String()
	}
	return "invalid frontmatter: " + strings.Join(parts, "; ")
}

// Strings renders each violation as "field: message".
func (v ValidationErrors) Strings() []string {
	out := make([]string, len(v))
	for i, fe := range v {
		out[i] = fe.String()
	}
	return out
}

// rawFrontmatter mirrors models.Frontmatter with the loose types the
// scanner produces, so that ozzo can report every field at once.
type rawFrontmatter struct {
	Created       string     `json:"created"`
	Updated       string     `json:"updated"`
	Tags          []string   `json:"tags"`
	Layer         int        `json:"layer"`
	Confidence    *float64   `json:"confidence"`
	AccessedCount int        `json:"accessed_count"`
	Person        *rawPerson `json:"person"`
}

func (r *rawFrontmatter) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Created, validation.Required.Error("is required")),
		validation.Field(&r.Updated, validation.Required.Error("is required")),
		validation.Field(&r.Tags,
			validation.NotNil.Error("is required"),
			validation.Required.Error("must not be empty"),
			validation.Each(validation.Required.Error("must not contain blank tags"))),
		validation.Field(&r.Layer,
			validation.Required.Error("is required"),
			validation.Min(1).Error("must be between 1 and 5"),
			validation.Max(5).Error("must be between 1 and 5")),
		validation.Field(&r.Confidence,
			validation.Min(0.0).Error("must be between 0 and 1"),
			validation.Max(1.0).Error("must be between 0 and 1")),
		validation.Field(&r.AccessedCount, validation.Min(0).Error("must not be negative")),
		validation.Field(&r.Person),
	)
}

type rawPerson struct {
	RelationshipType string `json:"relationship_type"`
	IntimacyLevel    int    `json:"intimacy_level"`
}

func (p rawPerson) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RelationshipType, validation.Required.Error("is required")),
		validation.Field(&p.IntimacyLevel,
			validation.Required.Error("is required"),
			validation.Min(1).Error("must be between 1 and 5"),
			validation.Max(5).Error("must be between 1 and 5")),
	)
}

// Validate checks a scanned frontmatter map against the document schema.
// It returns the typed frontmatter, or every violation found; it never
// stops at the first one.
func Validate(fm map[string]any) (*models.Frontmatter, ValidationErrors) {
	var (
		raw   rawFrontmatter
		errs  ValidationErrors
		typed = map[string]bool{}
	)
	typeErr := func(field, msg string) {
		typed[field] = true
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	raw.Created = scalarString(fm["created"])
	raw.Updated = scalarString(fm["updated"])

	if v, ok := fm["tags"]; ok && v != nil {
		tags, ok := stringList(v)
		if !ok {
			typeErr("tags", "must be a list of strings")
		}
		raw.Tags = tags
		if raw.Tags == nil {
			raw.Tags = []string{}
		}
	}

	if v, ok := fm["layer"]; ok && v != nil {
		n, ok := asInt(v)
		if !ok {
			typeErr("layer", "must be an integer between 1 and 5")
		}
		raw.Layer = n
	}

	if v, ok := fm["confidence"]; ok && v != nil {
		f, ok := asFloat(v)
		if !ok {
			typeErr("confidence", "must be a number between 0 and 1")
		} else {
			raw.Confidence = &f
		}
	}

	if v, ok := fm["accessed_count"]; ok && v != nil {
		n, ok := asInt(v)
		if !ok {
			typeErr("accessed_count", "must be an integer")
		}
		raw.AccessedCount = n
	}

	if v, ok := fm["person"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			typeErr("person", "must be a map with relationship_type and intimacy_level")
		} else {
			p := &rawPerson{RelationshipType: scalarString(m["relationship_type"])}
			if lv, ok := m["intimacy_level"]; ok && lv != nil {
				n, ok := asInt(lv)
				if !ok {
					typeErr("person.intimacy_level", "must be an integer between 1 and 5")
				}
				p.IntimacyLevel = n
			}
			raw.Person = p
		}
	}

	if err := raw.Validate(); err != nil {
		for _, fe := range flattenErrors("", err) {
			if typed[fe.Field] {
				continue
			}
			errs = append(errs, fe)
		}
	}

	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return nil, errs
	}

	out := &models.Frontmatter{
		Created:       raw.Created,
		Updated:       raw.Updated,
		Tags:          raw.Tags,
		Layer:         models.Layer(raw.Layer),
		Title:         scalarString(fm["title"]),
		Confidence:    raw.Confidence,
		AccessedCount: raw.AccessedCount,
		Source:        scalarString(fm["source"]),
		Expires:       scalarString(fm["expires"]),
		Domain:        scalarString(fm["domain"]),
	}
	if raw.Person != nil {
		out.Person = &models.Person{
			RelationshipType: strings.ToLower(raw.Person.RelationshipType),
			IntimacyLevel:    raw.Person.IntimacyLevel,
		}
	}
	return out, nil
}

// flattenErrors turns nested ozzo errors into dotted field paths.
func flattenErrors(prefix string, err error) []FieldError {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		field := strings.TrimSuffix(prefix, ".")
		if field == "" {
			field = "frontmatter"
		}
		return []FieldError{{Field: field, Message: err.Error()}}
	}

	keys := make([]string, 0, len(verrs))
	for k := range verrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []FieldError
	for _, k := range keys {
		fieldErr := verrs[k]
		var nested validation.Errors
		if errors.As(fieldErr, &nested) {
			out = append(out, flattenErrors(prefix+k+".", nested)...)
			continue
		}
		out = append(out, FieldError{Field: prefix + k, Message: fieldErr.Error()})
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return ""
	}
}

func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		ok := true
		for _, item := range t {
			s := scalarString(item)
			if _, isMap := item.(map[string]any); isMap {
				ok = false
				continue
			}
			out = append(out, s)
		}
		return out, ok
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}, true
		}
		return []string{strings.TrimSpace(t)}, true
	default:
		return nil, false
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
