// Package form implements the registration wizard: a five-step state
// machine over the raw field values, with per-step validation, touched
// field gating, and an asynchronous email availability gate. The wizard is
// UI-agnostic; a frontend binds its inputs to Set/Touch/Blur and its
// forward button to Advance.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luventi/portero/format"
	"github.com/luventi/portero/validate"
)

// Field defines a public type used by portero APIs.
//
// Field instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Field string

const (
	// FieldEmail is an exported constant or variable used by the access client.
	FieldEmail Field = "email"
	// FieldPassword is an exported constant or variable used by the access client.
	FieldPassword Field = "senha"
	// FieldConfirmPassword is an exported constant or variable used by the access client.
	FieldConfirmPassword Field = "confirmSenha"
	// FieldName is an exported constant or variable used by the access client.
	FieldName Field = "nome"
	// FieldCPF is an exported constant or variable used by the access client.
	FieldCPF Field = "cpf"
	// FieldPhone is an exported constant or variable used by the access client.
	FieldPhone Field = "telefone"
	// FieldBirthDate is an exported constant or variable used by the access client.
	FieldBirthDate Field = "dataDeNascimento"
	// FieldImage is an exported constant or variable used by the access client.
	FieldImage Field = "image"
	// FieldTerms is an exported constant or variable used by the access client.
	FieldTerms Field = "terms"
)

const (
	// FirstStep is an exported constant or variable used by the access client.
	FirstStep = 1
	// LastStep is an exported constant or variable used by the access client.
	LastStep = 5
)

// fieldsByStep fixes which fields each wizard step owns. Validation and
// the touched gate only ever consider the current step's fields.
var fieldsByStep = map[int][]Field{
	1: {FieldEmail, FieldPassword, FieldConfirmPassword},
	2: {FieldName, FieldCPF},
	3: {FieldPhone, FieldBirthDate},
	4: {FieldImage},
	5: {FieldTerms},
}

// Data defines a public type used by portero APIs.
//
// Data instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Data struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	CPF             string
	Phone           string
	BirthDate       string
	Image           string
	TermsAccepted   bool
	International   bool
}

// Registration is the normalized wire payload built by Finish: CPF
// stripped to digits, phone in +55 form, birth date as YYYY-MM-DD, image
// without its data-URI envelope.
type Registration struct {
	Name      string `json:"nome"`
	Email     string `json:"email"`
	Password  string `json:"senha"`
	CPF       string `json:"cpf"`
	Phone     string `json:"telefone"`
	BirthDate string `json:"dataDeNascimento"`
	Image     string `json:"imgUsuario,omitempty"`
}

// EmailChecker reports whether an address is already registered. The
// portero Client satisfies it.
type EmailChecker interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Submitter receives the normalized registration on Finish.
type Submitter interface {
	Submit(ctx context.Context, reg Registration) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, reg Registration) error

// Submit describes the submit operation and its observable behavior.
//
// Submit may return an error when input validation, dependency calls, or security checks fail.
// Submit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f SubmitterFunc) Submit(ctx context.Context, reg Registration) error {
	return f(ctx, reg)
}

var (
	// ErrStepBlocked is an exported constant or variable used by the access client.
	ErrStepBlocked = errors.New("current step has validation errors")
	// ErrEmailPending is an exported constant or variable used by the access client.
	ErrEmailPending = errors.New("email availability check still pending")
	// ErrNotLastStep is an exported constant or variable used by the access client.
	ErrNotLastStep = errors.New("finish is only allowed on the last step")
	// ErrNoSubmitter is an exported constant or variable used by the access client.
	ErrNoSubmitter = errors.New("no submitter configured")
)

type emailStatus int

const (
	emailUnknown emailStatus = iota
	emailPending
	emailAvailable
	emailTaken
	emailCheckFailed
)

// Wizard defines a public type used by portero APIs.
//
// Wizard instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// A Wizard is single-use: one registration attempt per instance. Methods
// are safe for concurrent use, though a UI normally drives it from one
// goroutine; the lock exists because email check results arrive
// asynchronously.
type Wizard struct {
	checker   EmailChecker
	submitter Submitter
	minAge    int
	now       func() time.Time

	mu      sync.Mutex
	step    int
	data    Data
	touched map[Field]bool
	errors  map[Field]string

	// Email gate state. emailGen increments whenever the email value
	// changes; a check result stamped with a stale generation is discarded.
	emailGen   uint64
	emailState emailStatus
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithSubmitter describes the withsubmitter operation and its observable behavior.
//
// WithSubmitter may return an error when input validation, dependency calls, or security checks fail.
// WithSubmitter does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func WithSubmitter(s Submitter) Option {
	return func(w *Wizard) { w.submitter = s }
}

// WithMinimumAge describes the withminimumage operation and its observable behavior.
//
// WithMinimumAge may return an error when input validation, dependency calls, or security checks fail.
// WithMinimumAge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func WithMinimumAge(years int) Option {
	return func(w *Wizard) { w.minAge = years }
}

// WithInternationalPhone switches the phone field to the permissive
// international format.
func WithInternationalPhone(international bool) Option {
	return func(w *Wizard) { w.data.International = international }
}

// WithClock injects the reference time used for age checks.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

// NewWizard describes the newwizard operation and its observable behavior.
//
// NewWizard may return an error when input validation, dependency calls, or security checks fail.
// NewWizard does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewWizard(checker EmailChecker, opts ...Option) *Wizard {
	w := &Wizard{
		checker: checker,
		minAge:  12,
		now:     time.Now,
		step:    FirstStep,
		touched: make(map[Field]bool),
		errors:  make(map[Field]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Step describes the step operation and its observable behavior.
//
// Step may return an error when input validation, dependency calls, or security checks fail.
// Step does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Data describes the data operation and its observable behavior.
//
// Data may return an error when input validation, dependency calls, or security checks fail.
// Data does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) Data() Data {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data
}

// Set stores a raw input value, applying the field's display mask, and
// recomputes the error map. Changing the email invalidates any pending or
// completed availability check.
func (w *Wizard) Set(field Field, raw string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch field {
	case FieldEmail:
		if w.data.Email != raw {
			w.emailGen++
			w.emailState = emailUnknown
		}
		w.data.Email = raw
	case FieldPassword:
		w.data.Password = raw
	case FieldConfirmPassword:
		w.data.ConfirmPassword = raw
	case FieldName:
		w.data.Name = raw
	case FieldCPF:
		w.data.CPF = format.CPF(raw)
	case FieldPhone:
		w.data.Phone = format.Phone(raw, w.data.International)
	case FieldBirthDate:
		w.data.BirthDate = format.Date(raw)
	case FieldImage:
		w.data.Image = raw
	}

	w.recompute()
}

// SetTerms describes the setterms operation and its observable behavior.
//
// SetTerms may return an error when input validation, dependency calls, or security checks fail.
// SetTerms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (w *Wizard) SetTerms(accepted bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data.TermsAccepted = accepted
	w.touched[FieldTerms] = true
	w.recompute()
}

// Touch marks a field as visited so its validation error becomes visible.
// Touched state is monotonic for the life of the wizard.
func (w *Wizard) Touch(field Field) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched[field] = true
	w.recompute()
}

// Blur marks the field as touched; leaving a syntactically valid email
// additionally starts the asynchronous availability check.
func (w *Wizard) Blur(ctx context.Context, field Field) {
	w.mu.Lock()
	w.touched[field] = true
	w.recompute()

	startCheck := field == FieldEmail &&
		w.checker != nil &&
		w.emailState == emailUnknown &&
		validate.Email(w.data.Email)
	var gen uint64
	var email string
	if startCheck {
		w.emailState = emailPending
		gen = w.emailGen
		email = w.data.Email
	}
	w.mu.Unlock()

	if startCheck {
		go w.runEmailCheck(ctx, gen, email)
	}
}

func (w *Wizard) runEmailCheck(ctx context.Context, gen uint64, email string) {
	taken, err := w.checker.EmailExists(ctx, email)

	w.mu.Lock()
	defer w.mu.Unlock()

	// The email changed while the check was in flight; this result
	// describes a value the user no longer wants.
	if gen != w.emailGen {
		return
	}

	switch {
	case err != nil:
		w.emailState = emailCheckFailed
	case taken:
		w.emailState = emailTaken
	default:
		w.emailState = emailAvailable
	}
	w.recompute()
}

// Errors returns the visible validation errors: only touched fields of the
// current step ever report. Fields belonging to other steps are always
// absent regardless of their value.
func (w *Wizard) Errors() map[Field]string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[Field]string, len(w.errors))
	for field, msg := range w.errors {
		if w.touched[field] {
			out[field] = msg
		}
	}
	return out
}

// recompute rebuilds the full error map for the current step. Caller holds
// the lock.
func (w *Wizard) recompute() {
	w.errors = make(map[Field]string)

	for _, field := range fieldsByStep[w.step] {
		if msg := w.validateField(field); msg != "" {
			w.errors[field] = msg
		}
	}
}

func (w *Wizard) validateField(field Field) string {
	switch field {
	case FieldEmail:
		if !validate.Email(w.data.Email) {
			return "E-mail inválido"
		}
		if w.emailState == emailTaken {
			return "E-mail já cadastrado"
		}
	case FieldPassword:
		if !validate.Password(w.data.Password) {
			return "A senha deve ter ao menos 8 caracteres, com maiúscula, minúscula, número e caractere especial"
		}
	case FieldConfirmPassword:
		if w.data.ConfirmPassword != w.data.Password || w.data.ConfirmPassword == "" {
			return "As senhas não coincidem"
		}
	case FieldName:
		if !validate.Name(w.data.Name) {
			return "Informe nome e sobrenome"
		}
	case FieldCPF:
		if !validate.CPF(w.data.CPF) {
			return "CPF inválido"
		}
	case FieldPhone:
		if !validate.Phone(w.data.Phone, w.data.International) {
			return "Telefone inválido"
		}
	case FieldBirthDate:
		if !validate.BirthDateAt(w.data.BirthDate, w.now()) {
			return "Data de nascimento inválida"
		}
		if !validate.MinimumAgeAt(w.data.BirthDate, w.minAge, w.now()) {
			return fmt.Sprintf("Idade mínima de %d anos", w.minAge)
		}
	case FieldImage:
		if !validate.ImagePayload(w.data.Image) {
			return "Captura facial obrigatória"
		}
	case FieldTerms:
		if !validate.TermsAccepted(w.data.TermsAccepted) {
			return "É necessário aceitar os termos de uso"
		}
	}
	return ""
}

// CanAdvance reports whether the forward action should be enabled. Steps 4
// and 5 gate on their single input being present; earlier steps leave the
// button enabled and let Advance surface the errors.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case 4:
		return validate.ImagePayload(w.data.Image)
	case 5:
		return w.data.TermsAccepted
	default:
		return true
	}
}

// Advance validates the current step and moves forward. Every field of the
// step is force-touched so its error becomes visible even when never
// visited. On step 1 the email availability gate must have confirmed the
// address: an unstarted check runs synchronously, a pending one blocks
// with ErrEmailPending, a taken address blocks with the field error set.
func (w *Wizard) Advance(ctx context.Context) error {
	w.mu.Lock()

	for _, field := range fieldsByStep[w.step] {
		w.touched[field] = true
	}
	w.recompute()

	if len(w.errors) > 0 {
		w.mu.Unlock()
		return ErrStepBlocked
	}

	if w.step == 1 && w.checker != nil {
		switch w.emailState {
		case emailAvailable:
			// gate passed
		case emailPending:
			w.mu.Unlock()
			return ErrEmailPending
		case emailTaken:
			w.mu.Unlock()
			return ErrStepBlocked
		default:
			gen := w.emailGen
			email := w.data.Email
			w.emailState = emailPending
			w.mu.Unlock()

			taken, err := w.checker.EmailExists(ctx, email)

			w.mu.Lock()
			if gen != w.emailGen {
				w.mu.Unlock()
				return ErrEmailPending
			}
			switch {
			case err != nil:
				w.emailState = emailCheckFailed
				w.mu.Unlock()
				return err
			case taken:
				w.emailState = emailTaken
				w.recompute()
				w.mu.Unlock()
				return ErrStepBlocked
			default:
				w.emailState = emailAvailable
			}
		}
	}

	if w.step < LastStep {
		w.step++
	}
	w.recompute()
	w.mu.Unlock()
	return nil
}

// Back moves to the previous step. Always allowed; the first step clamps.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > FirstStep {
		w.step--
	}
	w.recompute()
}

// Finish validates the last step and hands the normalized registration to
// the configured Submitter.
func (w *Wizard) Finish(ctx context.Context) (Registration, error) {
	w.mu.Lock()

	if w.step != LastStep {
		w.mu.Unlock()
		return Registration{}, ErrNotLastStep
	}

	for _, field := range fieldsByStep[w.step] {
		w.touched[field] = true
	}
	w.recompute()
	if len(w.errors) > 0 {
		w.mu.Unlock()
		return Registration{}, ErrStepBlocked
	}

	reg := w.registration()
	submitter := w.submitter
	w.mu.Unlock()

	if submitter == nil {
		return reg, ErrNoSubmitter
	}
	if err := submitter.Submit(ctx, reg); err != nil {
		return reg, err
	}
	return reg, nil
}

// Registration returns the normalized wire payload for the current data
// without submitting it. Caller holds no lock guarantees over later edits.
func (w *Wizard) Registration() Registration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registration()
}

func (w *Wizard) registration() Registration {
	return Registration{
		Name:      w.data.Name,
		Email:     w.data.Email,
		Password:  w.data.Password,
		CPF:       format.Digits(w.data.CPF),
		Phone:     format.PhoneForAPI(w.data.Phone, w.data.International),
		BirthDate: format.DateForAPI(w.data.BirthDate),
		Image:     format.ImageForAPI(w.data.Image),
	}
}
