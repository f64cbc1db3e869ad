package assertions

import (
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/caugusteg/smokecheck/packages/http"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names bundled with the package
const (
	SchemaContactResponse = "contact_response"
	SchemaQuoteResponse   = "quote_response"
	SchemaRootResponse    = "root_response"
)

type Operator int

const (
	OpEquals Operator = iota
	OpIn
	OpStartsWith
	OpContains
	OpExists
	OpTruthy
	OpSchema
)

func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "=="
	case OpIn:
		return "in"
	case OpStartsWith:
		return "startsWith"
	case OpContains:
		return "contains"
	case OpExists:
		return "exists"
	case OpTruthy:
		return "truthy"
	case OpSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Assertion is a single check: Subject is "status", "body" or "body.<path>".
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type Evaluator struct {
	response *http.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func NewEvaluator(resp *http.Response) *Evaluator {
	e := &Evaluator{response: resp}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.isJSON = true
	}
	return e
}

// BodyIsJSON reports whether the response body parsed as JSON
func (e *Evaluator) BodyIsJSON() bool {
	return e.isJSON
}

// Decode returns the body decoded as JSON, failing the way a strict decoder does
func (e *Evaluator) Decode() (any, error) {
	if !e.isJSON {
		return nil, fmt.Errorf("response body is not valid JSON: %q", truncate(e.response.BodyString(), 80))
	}
	return e.bodyJSON.Value(), nil
}

// String returns the string at a body path, or "" when absent or not a string
func (e *Evaluator) String(path string) string {
	r := e.lookup(path)
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

func (e *Evaluator) Evaluate(a Assertion) *Result {
	result := &Result{
		Subject:  a.Subject,
		Operator: a.Operator.String(),
		Expected: a.Expected,
	}

	actual, found, err := e.actualValue(a.Subject)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	switch a.Operator {
	case OpEquals:
		result.Passed, result.Message = equals(actual, a.Expected)
	case OpIn:
		result.Passed, result.Message = in(actual, a.Expected)
	case OpStartsWith:
		result.Passed, result.Message = startsWith(actual, a.Expected)
	case OpContains:
		result.Passed, result.Message = contains(actual, a.Expected)
	case OpExists:
		if found {
			result.Passed = true
		} else {
			result.Message = fmt.Sprintf("expected %s to exist", a.Subject)
		}
	case OpTruthy:
		if Truthy(actual) {
			result.Passed = true
		} else {
			result.Message = fmt.Sprintf("expected %s to be truthy, got %v", a.Subject, actual)
		}
	case OpSchema:
		result.Passed, result.Message = e.schema(actual, a.Expected)
	default:
		result.Message = fmt.Sprintf("unknown operator: %v", a.Operator)
	}

	return result
}

func (e *Evaluator) actualValue(subject string) (any, bool, error) {
	switch {
	case subject == "status":
		return e.response.StatusCode, true, nil
	case subject == "body":
		if !e.isJSON {
			return e.response.BodyString(), true, nil
		}
		return e.bodyJSON.Value(), true, nil
	case strings.HasPrefix(subject, "body."):
		if !e.isJSON {
			return nil, false, fmt.Errorf("response body is not JSON")
		}
		r := e.lookup(strings.TrimPrefix(subject, "body."))
		if !r.Exists() {
			return nil, false, nil
		}
		return r.Value(), true, nil
	default:
		return nil, false, fmt.Errorf("unknown subject: %s", subject)
	}
}

func (e *Evaluator) lookup(path string) gjson.Result {
	if !e.isJSON {
		return gjson.Result{}
	}
	return e.bodyJSON.Get(path)
}

func (e *Evaluator) schema(actual, expected any) (bool, string) {
	name := fmt.Sprintf("%v", expected)
	schemaData, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return false, fmt.Sprintf("unknown schema %q", name)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(actualJSON),
	)
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}

	if result.Valid() {
		return true, ""
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
}

// Truthy follows the usual dynamic-language rules for decoded JSON:
// null, false, 0, "" and empty arrays or objects are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

func equals(actual, expected any) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func in(actual, expected any) (bool, string) {
	var options []any
	switch v := expected.(type) {
	case []any:
		options = v
	case []int:
		for _, i := range v {
			options = append(options, i)
		}
	case []string:
		for _, s := range v {
			options = append(options, s)
		}
	default:
		return false, fmt.Sprintf("expected a list for 'in', got %T", expected)
	}

	for _, item := range options {
		if passed, _ := equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func startsWith(actual, expected any) (bool, string) {
	actualStr, ok := actual.(string)
	if !ok {
		return false, fmt.Sprintf("expected a string, got %T", actual)
	}
	prefix := fmt.Sprintf("%v", expected)
	if strings.HasPrefix(actualStr, prefix) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func contains(actual, expected any) (bool, string) {
	actualStr, ok := actual.(string)
	if !ok {
		return false, fmt.Sprintf("expected a string, got %T", actual)
	}
	sub := fmt.Sprintf("%v", expected)
	if strings.Contains(actualStr, sub) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// EvaluateAll runs every assertion and stops at the first failure.
// The returned slice ends with the failing result, if any.
func EvaluateAll(resp *http.Response, assertions []Assertion) ([]*Result, bool) {
	evaluator := NewEvaluator(resp)
	results := make([]*Result, 0, len(assertions))
	for _, a := range assertions {
		r := evaluator.Evaluate(a)
		results = append(results, r)
		if !r.Passed {
			return results, false
		}
	}
	return results, true
}
