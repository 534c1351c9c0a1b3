package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/digkill/CapCalWeb/internal/backend"
	"github.com/digkill/CapCalWeb/internal/models"
)

const (
	ModeDemo   = "demo"
	ModeRemote = "remote"
)

// Messages shown on the login form.
const (
	MsgMissingFields = "Please fill in all fields"
	MsgInvalidEmail  = "Please enter a valid email address"
	MsgLoginFailed   = "Login failed. Please try again."
)

var (
	ErrMissingFields = errors.New(MsgMissingFields)
	ErrInvalidEmail  = errors.New(MsgInvalidEmail)
)

// Identity is what a successful login stores in the session.
type Identity struct {
	UserName  string
	UserEmail string
	Token     string
}

type Verifier interface {
	LoginWithPassword(ctx context.Context, creds models.Credentials) (*backend.LoginResult, error)
}

// Authenticator checks credentials locally and, in remote mode, against the
// login function. Demo mode accepts any well-formed credentials.
type Authenticator struct {
	mode     string
	verifier Verifier
	log      *slog.Logger
}

func New(mode string, verifier Verifier, log *slog.Logger) *Authenticator {
	if mode != ModeRemote {
		mode = ModeDemo
	}
	return &Authenticator{mode: mode, verifier: verifier, log: log}
}

func (a *Authenticator) Mode() string {
	return a.mode
}

// Validate runs the local checks; it never touches the network.
func Validate(creds models.Credentials) error {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return ErrMissingFields
	}
	if !strings.Contains(creds.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

func (a *Authenticator) Authenticate(ctx context.Context, creds models.Credentials) (*Identity, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := Validate(creds); err != nil {
		return nil, err
	}

	identity := &Identity{UserName: localPart(creds.Email), UserEmail: creds.Email}
	if a.mode == ModeDemo {
		a.log.Info("demo login", "email", creds.Email)
		return identity, nil
	}

	res, err := a.verifier.LoginWithPassword(ctx, creds)
	if err != nil {
		a.log.Warn("remote login failed", "email", creds.Email, "err", err)
		return nil, err
	}
	if name := strings.TrimSpace(res.DisplayName); name != "" {
		identity.UserName = name
	}
	identity.Token = res.IDToken
	a.log.Info("remote login", "email", creds.Email)
	return identity, nil
}

// UserMessage maps an Authenticate error to the inline form message.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return MsgMissingFields
	case errors.Is(err, ErrInvalidEmail):
		return MsgInvalidEmail
	}
	if msg, ok := backend.RejectionMessage(err); ok {
		return msg
	}
	return MsgLoginFailed
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
