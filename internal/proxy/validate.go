package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GroupDefault is the validation group applied to create and update requests.
const GroupDefault = "Default"

const (
	minPort = 1
	maxPort = 65535
)

// Violation messages shared by every group.
const (
	msgNotNull     = "This value should not be null."
	msgUnexpected  = "This field was not expected."
	msgRootObject  = "This value should be of type object."
	msgNotValid    = "This value is not valid."
	msgTypePattern = "This value should be of type %s."
)

// FieldViolation describes one rule a document failed.
type FieldViolation struct {
	Field   string `json:"field"` // JSON field name; empty for the document root.
	Message string `json:"message"`
}

func (v FieldViolation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindBool
)

func (k fieldKind) String() string {
	switch k {
	case kindInt:
		return "int"
	case kindBool:
		return "bool"
	default:
		return "string"
	}
}

// fieldSpec lists the proxy document schema in reporting order.
type fieldSpec struct {
	name     string
	kind     fieldKind
	nullable bool
}

var schema = []fieldSpec{
	{name: "host", kind: kindString},
	{name: "port", kind: kindInt},
	{name: "username", kind: kindString, nullable: true},
	{name: "password", kind: kindString, nullable: true},
	{name: "enabled", kind: kindBool, nullable: true},
}

// proxyFields holds the typed values that passed the type checks.
type proxyFields struct {
	Host     string `json:"host" validate:"required,max=255,hostname_rfc1123|ip"`
	Port     int    `json:"port" validate:"min=1,max=65535"`
	Username string `json:"username" validate:"max=255"`
	Password string `json:"password" validate:"max=255"`
}

// document is a proxy body after the structural pass.
type document struct {
	fields  proxyFields
	present map[string]bool // Field sent with a non-null value.
	invalid map[string]bool // Field already has a violation.
}

type groupFunc func(doc *document) []FieldViolation

// Validator checks proxy documents against named rule groups.
type Validator struct {
	validate *validator.Validate
	groups   map[string]groupFunc
}

// NewValidator builds a Validator with the Default group registered.
func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterStructValidation(passwordRequiresUsername, proxyFields{})

	v := &Validator{validate: validate}
	v.groups = map[string]groupFunc{
		GroupDefault: v.defaultGroup,
	}
	return v
}

// Validate checks raw against groups and returns every violation found.
// When allowExtraFields is false, fields outside the schema are violations.
// The error is non-nil only for an unknown group name.
func (v *Validator) Validate(raw []byte, groups []string, allowExtraFields bool) ([]FieldViolation, error) {
	funcs := make([]groupFunc, 0, len(groups))
	for _, name := range groups {
		fn, ok := v.groups[name]
		if !ok {
			return nil, fmt.Errorf("proxy: unknown validation group %q", name)
		}
		funcs = append(funcs, fn)
	}

	var object map[string]json.RawMessage
	if errUnmarshal := json.Unmarshal(raw, &object); errUnmarshal != nil || object == nil {
		return []FieldViolation{{Message: msgRootObject}}, nil
	}

	doc := &document{present: map[string]bool{}, invalid: map[string]bool{}}
	var violations []FieldViolation

	if !allowExtraFields {
		for key := range object {
			if !knownField(key) {
				violations = append(violations, FieldViolation{Field: key, Message: msgUnexpected})
			}
		}
	}

	for _, spec := range schema {
		value, ok := object[spec.name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		if errAssign := doc.assign(spec, value); errAssign != nil {
			doc.invalid[spec.name] = true
			violations = append(violations, FieldViolation{
				Field:   spec.name,
				Message: fmt.Sprintf(msgTypePattern, spec.kind),
			})
			continue
		}
		doc.present[spec.name] = true
	}

	for _, fn := range funcs {
		violations = append(violations, fn(doc)...)
	}

	sortViolations(violations)
	return violations, nil
}

// defaultGroup enforces nullability and the struct tag rules.
func (v *Validator) defaultGroup(doc *document) []FieldViolation {
	var violations []FieldViolation
	for _, spec := range schema {
		if spec.nullable || doc.present[spec.name] || doc.invalid[spec.name] {
			continue
		}
		doc.invalid[spec.name] = true
		violations = append(violations, FieldViolation{Field: spec.name, Message: msgNotNull})
	}

	errValidate := v.validate.Struct(doc.fields)
	if errValidate == nil {
		return violations
	}
	fieldErrs, ok := errValidate.(validator.ValidationErrors)
	if !ok {
		return append(violations, FieldViolation{Message: msgNotValid})
	}
	// One violation per field; struct level rules come after the tag rules.
	for _, fe := range fieldErrs {
		if doc.invalid[fe.Field()] {
			continue
		}
		doc.invalid[fe.Field()] = true
		violations = append(violations, FieldViolation{Field: fe.Field(), Message: violationMessage(fe)})
	}
	return violations
}

// assign decodes value into the typed field for spec.
func (d *document) assign(spec fieldSpec, value json.RawMessage) error {
	switch spec.name {
	case "host":
		return json.Unmarshal(value, &d.fields.Host)
	case "port":
		return json.Unmarshal(value, &d.fields.Port)
	case "username":
		return json.Unmarshal(value, &d.fields.Username)
	case "password":
		return json.Unmarshal(value, &d.fields.Password)
	case "enabled":
		var enabled bool
		return json.Unmarshal(value, &enabled)
	}
	return fmt.Errorf("proxy: no field %q", spec.name)
}

func passwordRequiresUsername(sl validator.StructLevel) {
	fields, ok := sl.Current().Interface().(proxyFields)
	if !ok {
		return
	}
	if fields.Password != "" && strings.TrimSpace(fields.Username) == "" {
		sl.ReportError(fields.Password, "password", "Password", "requires_username", "")
	}
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This value should not be blank."
	case "min", "max":
		if fe.Kind() == reflect.String {
			if fe.Tag() == "min" {
				return fmt.Sprintf("This value is too short. It should have %s characters or more.", fe.Param())
			}
			return fmt.Sprintf("This value is too long. It should have %s characters or less.", fe.Param())
		}
		return fmt.Sprintf("This value should be between %d and %d.", minPort, maxPort)
	case "hostname_rfc1123|ip", "hostname_rfc1123", "ip":
		return "This value is not a valid hostname or IP address."
	case "requires_username":
		return "A password cannot be set without a username."
	default:
		return msgNotValid
	}
}

func knownField(name string) bool {
	for _, spec := range schema {
		if spec.name == name {
			return true
		}
	}
	return false
}

// sortViolations orders the root first, then schema fields, then unknown fields by name.
func sortViolations(violations []FieldViolation) {
	rank := func(field string) int {
		if field == "" {
			return -1
		}
		for i, spec := range schema {
			if spec.name == field {
				return i
			}
		}
		return len(schema)
	}
	sort.SliceStable(violations, func(i, j int) bool {
		ri, rj := rank(violations[i].Field), rank(violations[j].Field)
		if ri != rj {
			return ri < rj
		}
		if ri == len(schema) {
			return violations[i].Field < violations[j].Field
		}
		return false
	})
}
