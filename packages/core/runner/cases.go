package runner

import (
	"context"
	"fmt"

	"github.com/caugusteg/smokecheck/packages/assertions"
	"github.com/caugusteg/smokecheck/packages/http"
)

// Env is what a case gets to work with
type Env struct {
	Client     *http.Client
	APIBase    string
	RootMarker string
}

// URL joins path onto the API base
func (e *Env) URL(path string) string {
	return http.JoinURL(e.APIBase, path)
}

// Outcome is what a case decided. StatusCode is kept for reporting only.
type Outcome struct {
	Success      bool
	Details      string
	ResponseData any
	StatusCode   int
}

// Case is one named check. An error returned from Run is recorded as a
// failure with ErrorPrefix in front of the message.
type Case struct {
	Name        string
	ErrorPrefix string
	Run         func(ctx context.Context, env *Env) (Outcome, error)
}

const (
	prefixConnection = "Connection error"
	prefixError      = "Error"
)

func (c Case) errorDetails(err error) string {
	prefix := c.ErrorPrefix
	if prefix == "" {
		prefix = prefixError
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}

var rejectedStatuses = []int{400, 422}

// DefaultCases returns the suite in execution order. The phone scenario is
// flattened into one case per input format.
func DefaultCases() []Case {
	cases := []Case{
		{Name: "API Root", ErrorPrefix: prefixConnection, Run: apiRoot},
		{Name: "Contact Form Valid", Run: contactFormValid},
		{Name: "Contact Invalid Email", Run: contactInvalidEmail},
		rejectionCase("Contact Missing Fields", "/contact", ContactRequest{
			Nom:   "Pierre Lavoie",
			Email: "pierre.lavoie@exemple.com",
		}, "Missing fields correctly rejected"),
		{Name: "Quote Form Valid", Run: quoteFormValid},
		rejectionCase("Quote Invalid Services", "/quote", QuoteRequest{
			Nom:         "Marc Dubois",
			Email:       "marc.dubois@exemple.com",
			Telephone:   "4385551234",
			Entreprise:  "StartupXYZ",
			TypeClient:  "particulier",
			Services:    []string{},
			Description: "Test avec services vides",
			Priorite:    "high",
		}, "Empty services correctly rejected"),
		rejectionCase("Quote Invalid Client Type", "/quote", QuoteRequest{
			Nom:         "Julie Gagnon",
			Email:       "julie.gagnon@exemple.com",
			Telephone:   "5145551234",
			Entreprise:  "ConseilTech",
			TypeClient:  "type-invalide",
			Services:    []string{"cybersecurity"},
			Description: "Test avec type client invalide",
			Priorite:    "critical",
		}, "Invalid client type correctly rejected"),
		rejectionCase("Quote Invalid Priority", "/quote", QuoteRequest{
			Nom:         "Robert Côté",
			Email:       "robert.cote@exemple.com",
			Telephone:   "4185551234",
			Entreprise:  "MegaCorp",
			TypeClient:  "grande-entreprise",
			Services:    []string{"installation", "support"},
			Description: "Test avec priorité invalide",
			Priorite:    "priorite-invalide",
		}, "Invalid priority correctly rejected"),
	}

	for _, pf := range PhoneFormats {
		cases = append(cases, phoneFormatCase(pf))
	}

	return append(cases,
		Case{Name: "Database Connectivity", ErrorPrefix: prefixConnection, Run: databaseConnectivity},
		Case{Name: "Error Handling JSON", Run: malformedJSON},
	)
}

// Names lists case names in execution order
func Names(cases []Case) []string {
	names := make([]string, len(cases))
	for i, c := range cases {
		names[i] = c.Name
	}
	return names
}

func apiRoot(ctx context.Context, env *Env) (Outcome, error) {
	resp, err := env.Client.Get(ctx, env.URL("/"), nil)
	if err != nil {
		return Outcome{}, err
	}
	if resp.StatusCode != 200 {
		return Outcome{
			Details:      fmt.Sprintf("Incorrect status code: %d", resp.StatusCode),
			ResponseData: resp.BodyString(),
			StatusCode:   resp.StatusCode,
		}, nil
	}

	eval := assertions.NewEvaluator(resp)
	data, err := eval.Decode()
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{ResponseData: data, StatusCode: resp.StatusCode}
	if _, ok := assertions.EvaluateAll(resp, []assertions.Assertion{
		{Subject: "body", Operator: assertions.OpSchema, Expected: assertions.SchemaRootResponse},
		{Subject: "body.message", Operator: assertions.OpContains, Expected: env.RootMarker},
	}); ok {
		out.Success = true
		out.Details = fmt.Sprintf("Status: %d, message received", resp.StatusCode)
	} else {
		out.Details = "Incorrect message in response"
	}
	return out, nil
}

func contactFormValid(ctx context.Context, env *Env) (Outcome, error) {
	return submission(ctx, env, "/contact", ContactRequest{
		Nom:       "Jean Dupont",
		Email:     "jean.dupont@exemple.com",
		Telephone: "(514) 123-4567",
		Message:   "Bonjour, j'aimerais obtenir des informations sur vos services de support informatique.",
	}, "ticketNumber", "MSG-", assertions.SchemaContactResponse, "Ticket generated: %s")
}

func quoteFormValid(ctx context.Context, env *Env) (Outcome, error) {
	return submission(ctx, env, "/quote", QuoteRequest{
		Nom:         "Sophie Martin",
		Email:       "sophie.martin@entreprise.com",
		Telephone:   "5141234567",
		Entreprise:  "TechCorp Inc.",
		TypeClient:  "petite-entreprise",
		Services:    []string{"support", "maintenance"},
		Description: "Nous avons besoin d'un support technique régulier pour notre infrastructure IT de 20 postes.",
		Priorite:    "normal",
	}, "referenceNumber", "DEV-", assertions.SchemaQuoteResponse, "Reference generated: %s")
}

// submission posts a valid payload and expects 200, a truthy success flag
// and an identifier field carrying the given prefix.
func submission(ctx context.Context, env *Env, path string, payload any, idField, idPrefix, schema, passFormat string) (Outcome, error) {
	resp, err := env.Client.PostJSON(ctx, env.URL(path), payload)
	if err != nil {
		return Outcome{}, err
	}
	if resp.StatusCode != 200 {
		return Outcome{
			Details:      fmt.Sprintf("Status code: %d", resp.StatusCode),
			ResponseData: resp.BodyString(),
			StatusCode:   resp.StatusCode,
		}, nil
	}

	eval := assertions.NewEvaluator(resp)
	data, err := eval.Decode()
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{ResponseData: data, StatusCode: resp.StatusCode}
	if _, ok := assertions.EvaluateAll(resp, []assertions.Assertion{
		{Subject: "body.success", Operator: assertions.OpTruthy},
		{Subject: "body", Operator: assertions.OpSchema, Expected: schema},
		{Subject: "body." + idField, Operator: assertions.OpStartsWith, Expected: idPrefix},
	}); !ok {
		out.Details = "Incorrect response structure"
		return out, nil
	}

	out.Success = true
	out.Details = fmt.Sprintf(passFormat, eval.String(idField))
	return out, nil
}

func contactInvalidEmail(ctx context.Context, env *Env) (Outcome, error) {
	resp, err := env.Client.PostJSON(ctx, env.URL("/contact"), ContactRequest{
		Nom:       "Marie Tremblay",
		Email:     "email-invalide",
		Telephone: "(418) 555-0123",
		Message:   "Test avec email invalide pour validation.",
	})
	if err != nil {
		return Outcome{}, err
	}

	switch resp.StatusCode {
	case 422:
		return Outcome{Success: true, Details: "Email validation correctly rejected", StatusCode: 422}, nil
	case 400:
		// a 400 is expected to explain itself in a JSON body
		data, err := assertions.NewEvaluator(resp).Decode()
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Success: true, Details: "Invalid email correctly rejected", ResponseData: data, StatusCode: 400}, nil
	default:
		return Outcome{Details: fmt.Sprintf("Unexpected status code: %d", resp.StatusCode), StatusCode: resp.StatusCode}, nil
	}
}

// rejectionCase posts an invalid payload and passes on 400 or 422
func rejectionCase(name, path string, payload any, passDetails string) Case {
	return Case{
		Name: name,
		Run: func(ctx context.Context, env *Env) (Outcome, error) {
			resp, err := env.Client.PostJSON(ctx, env.URL(path), payload)
			if err != nil {
				return Outcome{}, err
			}
			if resp.StatusIn(rejectedStatuses...) {
				return Outcome{Success: true, Details: passDetails, StatusCode: resp.StatusCode}, nil
			}
			return Outcome{Details: fmt.Sprintf("Unexpected status code: %d", resp.StatusCode), StatusCode: resp.StatusCode}, nil
		},
	}
}

// phoneFormatCase only checks that the submission is accepted. The stored
// value is not read back, so Expected shows up in the details alone.
func phoneFormatCase(pf PhoneFormat) Case {
	return Case{
		Name: "Phone Format " + pf.Input,
		Run: func(ctx context.Context, env *Env) (Outcome, error) {
			resp, err := env.Client.PostJSON(ctx, env.URL("/contact"), ContactRequest{
				Nom:       "Test Formatage",
				Email:     "test.formatage@exemple.com",
				Telephone: pf.Input,
				Message:   "Test formatage téléphone: " + pf.Input,
			})
			if err != nil {
				return Outcome{}, err
			}
			if resp.StatusCode == 200 {
				return Outcome{
					Success:    true,
					Details:    fmt.Sprintf("Format accepted: %s -> %s", pf.Input, pf.Expected),
					StatusCode: 200,
				}, nil
			}
			return Outcome{Details: "Format rejected for: " + pf.Input, StatusCode: resp.StatusCode}, nil
		},
	}
}

// databaseConnectivity infers storage health from a contact submission
func databaseConnectivity(ctx context.Context, env *Env) (Outcome, error) {
	resp, err := env.Client.PostJSON(ctx, env.URL("/contact"), ContactRequest{
		Nom:       "Test Database",
		Email:     "test.database@exemple.com",
		Telephone: "(514) 999-0000",
		Message:   "Test de connectivité à la base de données MongoDB.",
	})
	if err != nil {
		return Outcome{}, err
	}
	if resp.StatusCode != 200 {
		return Outcome{Details: fmt.Sprintf("API error - possible DB problem: %d", resp.StatusCode), StatusCode: resp.StatusCode}, nil
	}

	eval := assertions.NewEvaluator(resp)
	if _, err := eval.Decode(); err != nil {
		return Outcome{}, err
	}

	if _, ok := assertions.EvaluateAll(resp, []assertions.Assertion{
		{Subject: "body.success", Operator: assertions.OpTruthy},
		{Subject: "body.ticketNumber", Operator: assertions.OpExists},
	}); !ok {
		return Outcome{Details: "Incomplete API response - possible DB problem", StatusCode: 200}, nil
	}
	return Outcome{Success: true, Details: "Database reachable through API", StatusCode: 200}, nil
}

func malformedJSON(ctx context.Context, env *Env) (Outcome, error) {
	resp, err := env.Client.Post(ctx, env.URL("/contact"), MalformedJSONBody, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return Outcome{}, err
	}
	if resp.StatusIn(rejectedStatuses...) {
		return Outcome{Success: true, Details: "Malformed JSON correctly rejected", StatusCode: resp.StatusCode}, nil
	}
	return Outcome{Details: fmt.Sprintf("Malformed JSON not handled correctly: %d", resp.StatusCode), StatusCode: resp.StatusCode}, nil
}
