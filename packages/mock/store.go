package mock

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContactSubmission is a contact message as received and stored
type ContactSubmission struct {
	Nom          string    `json:"nom"`
	Email        string    `json:"email"`
	Telephone    string    `json:"telephone,omitempty"`
	Message      string    `json:"message"`
	TicketNumber string    `json:"ticketNumber,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// QuoteSubmission is a quote request as received and stored
type QuoteSubmission struct {
	Nom             string    `json:"nom"`
	Email           string    `json:"email"`
	Telephone       string    `json:"telephone,omitempty"`
	Entreprise      string    `json:"entreprise,omitempty"`
	TypeClient      string    `json:"typeClient"`
	Services        []string  `json:"services"`
	Description     string    `json:"description"`
	Priorite        string    `json:"priorite"`
	ReferenceNumber string    `json:"referenceNumber,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// Store keeps accepted submissions in memory
type Store struct {
	mu       sync.RWMutex
	contacts []ContactSubmission
	quotes   []QuoteSubmission
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

func (s *Store) newID(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, s.now().Format("20060102"), suffix)
}

// AddContact stores c and returns its ticket number
func (s *Store) AddContact(c ContactSubmission) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.TicketNumber = s.newID("MSG")
	c.CreatedAt = s.now()
	s.contacts = append(s.contacts, c)
	return c.TicketNumber
}

// AddQuote stores q and returns its reference number
func (s *Store) AddQuote(q QuoteSubmission) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ReferenceNumber = s.newID("DEV")
	q.CreatedAt = s.now()
	s.quotes = append(s.quotes, q)
	return q.ReferenceNumber
}

func (s *Store) Contacts() []ContactSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ContactSubmission, len(s.contacts))
	copy(out, s.contacts)
	return out
}

func (s *Store) Quotes() []QuoteSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]QuoteSubmission, len(s.quotes))
	copy(out, s.quotes)
	return out
}
