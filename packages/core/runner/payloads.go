package runner

// ContactRequest is the body of POST /api/contact
type ContactRequest struct {
	Nom       string `json:"nom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone,omitempty"`
	Message   string `json:"message,omitempty"`
}

// QuoteRequest is the body of POST /api/quote.
// Services is always serialized, so an empty list goes out as [].
type QuoteRequest struct {
	Nom         string   `json:"nom"`
	Email       string   `json:"email"`
	Telephone   string   `json:"telephone"`
	Entreprise  string   `json:"entreprise"`
	TypeClient  string   `json:"typeClient"`
	Services    []string `json:"services"`
	Description string   `json:"description"`
	Priorite    string   `json:"priorite"`
}

// PhoneFormat is one phone-number input and the form the backend should store
type PhoneFormat struct {
	Input    string
	Expected string
}

// PhoneFormats are submitted one by one; each becomes its own case
var PhoneFormats = []PhoneFormat{
	{Input: "5141234567", Expected: "(514) 123-4567"},
	{Input: "514-123-4567", Expected: "(514) 123-4567"},
	{Input: "(514) 123-4567", Expected: "(514) 123-4567"},
	{Input: "514 123 4567", Expected: "(514) 123-4567"},
}

// MalformedJSONBody is sent with a JSON content type to check parser errors
const MalformedJSONBody = "invalid json data"
