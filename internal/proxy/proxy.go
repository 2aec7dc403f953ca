package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// InvalidJSONMessage is reported to clients when a request body is not a JSON document.
const InvalidJSONMessage = "Invalid JSON message received"

// JSON decoding error codes carried by ParseError.
const (
	// JSONErrorSyntax marks malformed JSON, including empty and null documents.
	JSONErrorSyntax = 4
	// JSONErrorUTF8 marks bodies that are not valid UTF-8.
	JSONErrorUTF8 = 5
)

var errNullDocument = errors.New("document is null")

// Proxy is the platform-wide outbound proxy configuration.
type Proxy struct {
	Host     string  `json:"host"`
	Port     int     `json:"port"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Enabled  bool    `json:"enabled"`
}

// IsConfigured reports whether a host has been set.
func (p Proxy) IsConfigured() bool {
	return p.Host != ""
}

// URL renders the proxy as an http URL with credentials, or nil when no host is set.
func (p Proxy) URL() *url.URL {
	if !p.IsConfigured() {
		return nil
	}
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	if p.Username != nil && *p.Username != "" {
		if p.Password != nil {
			u.User = url.UserPassword(*p.Username, *p.Password)
		} else {
			u.User = url.User(*p.Username)
		}
	}
	return u
}

// String returns the URL with the password masked, so a Proxy is safe to log.
func (p Proxy) String() string {
	u := p.URL()
	if u == nil {
		return "<unset>"
	}
	return u.Redacted()
}

// ParseError reports a request body that could not be decoded as JSON.
type ParseError struct {
	Code   int   // One of the JSONError* codes.
	Offset int64 // Byte offset of the failure, when known.
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return InvalidJSONMessage
	}
	return InvalidJSONMessage + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError carries every violation found in a document.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ParseDocument checks that raw is a non-null JSON document.
func ParseDocument(raw []byte) error {
	if !utf8.Valid(raw) {
		return &ParseError{Code: JSONErrorUTF8, Err: errors.New("malformed UTF-8 characters")}
	}

	var doc any
	if errUnmarshal := json.Unmarshal(raw, &doc); errUnmarshal != nil {
		parseErr := &ParseError{Code: JSONErrorSyntax, Err: errUnmarshal}
		var syntaxErr *json.SyntaxError
		if errors.As(errUnmarshal, &syntaxErr) {
			parseErr.Offset = syntaxErr.Offset
		}
		return parseErr
	}
	if doc == nil {
		return &ParseError{Code: JSONErrorSyntax, Err: errNullDocument}
	}
	return nil
}

// Decode builds a Proxy from an already validated document.
// An absent enabled flag means the proxy is in use.
func Decode(raw []byte) (Proxy, error) {
	p := Proxy{Enabled: true}
	if errUnmarshal := json.Unmarshal(raw, &p); errUnmarshal != nil {
		return Proxy{}, fmt.Errorf("proxy: decode: %w", errUnmarshal)
	}
	return p, nil
}

// DecodeRequest parses, validates and decodes an update body.
// It returns a *ParseError or *ValidationError for client mistakes.
func DecodeRequest(raw []byte, v *Validator) (Proxy, error) {
	if errParse := ParseDocument(raw); errParse != nil {
		return Proxy{}, errParse
	}

	violations, errValidate := v.Validate(raw, []string{GroupDefault}, false)
	if errValidate != nil {
		return Proxy{}, errValidate
	}
	if len(violations) > 0 {
		return Proxy{}, &ValidationError{Violations: violations}
	}

	return Decode(raw)
}
