// Package campaign defines the core domain types for the Buen Fin
// promotion: the conversation session, its step sequence, and the
// amount-to-prize tier table. It has zero external dependencies —
// everything here is pure Go.
package campaign

import (
	"errors"
	"fmt"
	"time"
)

// Step is the participant's position in the scripted questionnaire.
// Question steps are ordered and advance one at a time; the values past
// StepAwaitingPhoto are reserved states, not questions.
type Step int

const (
	StepName Step = iota
	StepStore
	StepTaxName
	StepOccupation
	StepOccasion
	StepReferral
	StepAwaitingPhoto
	StepRepeatChoice
	StepTerminated
)

func (s Step) String() string {
	switch s {
	case StepName:
		return "name"
	case StepStore:
		return "store"
	case StepTaxName:
		return "tax_name"
	case StepOccupation:
		return "occupation"
	case StepOccasion:
		return "occasion"
	case StepReferral:
		return "referral"
	case StepAwaitingPhoto:
		return "awaiting_photo"
	case StepRepeatChoice:
		return "repeat_choice"
	case StepTerminated:
		return "terminated"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) valid() bool {
	return s >= StepName && s <= StepTerminated
}

// IsQuestion reports whether the step collects a questionnaire answer.
func (s Step) IsQuestion() bool {
	return s >= StepName && s < StepAwaitingPhoto
}

// SellerUnknown is recorded when the start message carries no seller code,
// or a code the registry does not know.
const SellerUnknown = "Sin vendedor"

// Answers holds everything collected from the participant before (and
// alongside) a receipt photo. Fields fill in step order and are never
// partially cleared except by a full restart.
type Answers struct {
	Name        string    `json:"nombre,omitempty"`
	Store       string    `json:"tienda,omitempty"`
	TaxName     string    `json:"rfc_nombre,omitempty"`
	Occupation  string    `json:"ocupacion,omitempty"`
	Occasion    string    `json:"festejo,omitempty"`
	Referral    string    `json:"medio,omitempty"`
	Seller      string    `json:"vendedor,omitempty"`
	PhotoRef    string    `json:"ticket_photo,omitempty"`
	SubmittedAt time.Time `json:"timestamp,omitzero"`
}

// Ticket is one completed receipt submission: a snapshot of the answers at
// submission time plus the extraction and allocation outcome.
type Ticket struct {
	Answers   Answers   `json:"respuestas"`
	Amount    *float64  `json:"monto,omitempty"`
	Outcome   string    `json:"premio"`
	Detail    string    `json:"motivo,omitempty"`
	CreatedAt time.Time `json:"creado"`
}

// Session is the per-participant conversation state. It is persisted as a
// whole value; callers load, mutate, and save it back.
type Session struct {
	Step    Step     `json:"paso"`
	Answers Answers  `json:"respuestas"`
	Tickets []Ticket `json:"tickets,omitempty"`
}

// NewSession starts a fresh questionnaire attributed to the given seller.
// Completed tickets from a prior session survive a restart, so carry them in.
func NewSession(seller string, history []Ticket) *Session {
	if seller == "" {
		seller = SellerUnknown
	}
	return &Session{
		Step:    StepName,
		Answers: Answers{Seller: seller},
		Tickets: history,
	}
}

var ErrInvalidSession = errors.New("invalid session state")

// Validate checks the structural invariants before a session crosses the
// persistence boundary, so a malformed stored payload fails fast instead of
// driving the conversation into an undefined state.
func (s *Session) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil session", ErrInvalidSession)
	}
	if !s.Step.valid() {
		return fmt.Errorf("%w: step %d out of range", ErrInvalidSession, int(s.Step))
	}
	if s.Step >= StepAwaitingPhoto && s.Step != StepTerminated {
		// Every question must have been answered before a photo is awaited.
		if err := s.Answers.complete(); err != nil {
			return fmt.Errorf("%w: %v at %s", ErrInvalidSession, err, s.Step)
		}
	}
	return nil
}

func (a *Answers) complete() error {
	checks := []struct {
		field string
		value string
	}{
		{"nombre", a.Name},
		{"tienda", a.Store},
		{"rfc_nombre", a.TaxName},
		{"ocupacion", a.Occupation},
		{"festejo", a.Occasion},
		{"medio", a.Referral},
	}
	for _, c := range checks {
		if c.value == "" {
			return fmt.Errorf("missing answer %q", c.field)
		}
	}
	return nil
}

// Record stores an answer for the current question step and advances.
// It is a no-op with an error for non-question steps.
func (s *Session) Record(answer string) error {
	switch s.Step {
	case StepName:
		s.Answers.Name = answer
	case StepStore:
		s.Answers.Store = answer
	case StepTaxName:
		s.Answers.TaxName = answer
	case StepOccupation:
		s.Answers.Occupation = answer
	case StepOccasion:
		s.Answers.Occasion = answer
	case StepReferral:
		s.Answers.Referral = answer
	default:
		return fmt.Errorf("%w: no question at %s", ErrInvalidSession, s.Step)
	}
	s.Step++
	return nil
}

// AddTicket appends a completed submission snapshot and moves the session
// to the repeat-choice state.
func (s *Session) AddTicket(t Ticket) {
	s.Tickets = append(s.Tickets, t)
	s.Step = StepRepeatChoice
}
