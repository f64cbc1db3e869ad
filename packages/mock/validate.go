package mock

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// ClientTypes accepted in a quote request
var ClientTypes = []string{"particulier", "petite-entreprise", "moyenne-entreprise", "grande-entreprise"}

// Priorities accepted in a quote request
var Priorities = []string{"low", "normal", "high", "critical"}

// FieldError describes one rejected field, in the shape FastAPI-style
// backends use for 422 bodies.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type fieldErrors []FieldError

func (f *fieldErrors) add(field, msg, kind string) {
	*f = append(*f, FieldError{Loc: []string{"body", field}, Msg: msg, Type: kind})
}

func (f *fieldErrors) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, "field required", "value_error.missing")
	}
}

func (f *fieldErrors) email(value string) {
	if value != "" && !emailRegex.MatchString(value) {
		f.add("email", "value is not a valid email address", "value_error.email")
	}
}

func (f *fieldErrors) oneOf(field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	f.add(field, fmt.Sprintf("value must be one of: %s", strings.Join(allowed, ", ")), "value_error.enum")
}

// NormalizePhone formats a North American number as (XXX) XXX-XXXX.
// A leading country code 1 is dropped. ok is false when the input does not
// hold exactly ten digits after that.
func NormalizePhone(input string) (string, bool) {
	var digits strings.Builder
	for _, r := range input {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return "", false
	}
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:]), true
}

func validateContact(c *ContactSubmission) fieldErrors {
	var errs fieldErrors
	errs.required("nom", c.Nom)
	errs.required("email", c.Email)
	errs.email(c.Email)
	errs.required("message", c.Message)
	if c.Telephone != "" {
		if _, ok := NormalizePhone(c.Telephone); !ok {
			errs.add("telephone", "invalid phone number", "value_error.phone")
		}
	}
	return errs
}

func validateQuote(q *QuoteSubmission) fieldErrors {
	var errs fieldErrors
	errs.required("nom", q.Nom)
	errs.required("email", q.Email)
	errs.email(q.Email)
	errs.required("typeClient", q.TypeClient)
	errs.oneOf("typeClient", q.TypeClient, ClientTypes)
	if len(q.Services) == 0 {
		errs.add("services", "at least one service is required", "value_error.list.min_items")
	}
	errs.required("description", q.Description)
	errs.required("priorite", q.Priorite)
	errs.oneOf("priorite", q.Priorite, Priorities)
	if q.Telephone != "" {
		if _, ok := NormalizePhone(q.Telephone); !ok {
			errs.add("telephone", "invalid phone number", "value_error.phone")
		}
	}
	return errs
}
