package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/domain"
	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

var (
	errSessionAPIRequired  = errors.New("session service: api client is required")
	errSessionRepoRequired = errors.New("session service: repository is required")
)

var (
	// ErrSessionInvalidInput indicates rejected form input or credentials.
	ErrSessionInvalidInput = errors.New("session service: invalid input")
	// ErrSessionNotFound indicates the visitor is not signed in.
	ErrSessionNotFound = errors.New("session service: not signed in")
	// ErrSessionUnavailable indicates the auth endpoints could not be reached.
	ErrSessionUnavailable = errors.New("session service: unavailable")
)

const (
	loginFailedMessage         = "Login failed"
	registrationFailedMessage  = "Registration failed"
	profileUpdateFailedMessage = "Failed to update profile"
	passwordChangeFailed       = "Failed to change password"
)

// SessionServiceDeps wires the sign-in state holder.
type SessionServiceDeps struct {
	API        authAPI
	Repository repositories.SessionRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type sessionService struct {
	api    authAPI
	repo   repositories.SessionRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

var (
	_ SessionService        = (*sessionService)(nil)
	_ auth.IdentityResolver = (*sessionService)(nil)
)

// NewSessionService constructs the session service.
func NewSessionService(deps SessionServiceDeps) (SessionService, error) {
	if deps.API == nil {
		return nil, errSessionAPIRequired
	}
	if deps.Repository == nil {
		return nil, errSessionRepoRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &sessionService{
		api:    deps.API,
		repo:   deps.Repository,
		now:    clock,
		logger: loggerOrNoop(deps.Logger),
	}, nil
}

// Login stores the token pair, then loads and caches the profile.
func (s *sessionService) Login(ctx context.Context, creds apiclient.Credentials) (AuthSession, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	verr := newValidationError(ErrSessionInvalidInput)
	if creds.Username == "" {
		verr.add("username", "Username is required")
	}
	if creds.Password == "" {
		verr.add("password", "Password is required")
	}
	if err := verr.orNil(); err != nil {
		return AuthSession{}, err
	}

	tokens, err := s.api.Login(ctx, creds)
	if err != nil {
		s.logger(ctx, "session.login_failed", map[string]any{"username": creds.Username, "error": err.Error()})
		return AuthSession{}, loginError(err)
	}
	if err := s.repo.SaveTokens(ctx, tokens.Access, tokens.Refresh); err != nil {
		return AuthSession{}, userError(ErrSessionUnavailable, loginFailedMessage, err)
	}
	user, err := s.loadUser(ctx)
	if err != nil {
		s.clearSession(ctx)
		return AuthSession{}, userError(ErrSessionUnavailable, loginFailedMessage, err)
	}
	s.logger(ctx, "session.login", map[string]any{"userId": user.ID.String()})
	return AuthSession{AccessToken: tokens.Access, RefreshToken: tokens.Refresh, User: &user}, nil
}

func loginError(err error) error {
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		message := chooseFirstNonEmpty(apiErr.Value("detail"), loginFailedMessage)
		if apiErr.Status >= 500 {
			return userError(ErrSessionUnavailable, message, err)
		}
		return userError(ErrSessionInvalidInput, message, err)
	}
	return userError(ErrSessionUnavailable, loginFailedMessage, err)
}

// Register creates the account and signs in with the same credentials.
func (s *sessionService) Register(ctx context.Context, reg apiclient.Registration) (AuthSession, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.PhoneNumber = strings.TrimSpace(reg.PhoneNumber)

	verr := newValidationError(ErrSessionInvalidInput)
	switch n := len([]rune(reg.Username)); {
	case n < 3:
		verr.add("username", "Username must be at least 3 characters")
	case n > 30:
		verr.add("username", "Username must be less than 30 characters")
	}
	if !validEmail(reg.Email) {
		verr.add("email", "Please enter a valid email address")
	}
	if !validOptionalPhone(reg.PhoneNumber) {
		verr.add("phone_number", "Please enter a valid phone number")
	}
	if problem := passwordProblem(reg.Password); problem != "" {
		verr.add("password", problem)
	}
	if reg.Password != reg.Password2 {
		verr.add("password2", "Passwords don't match")
	}
	if err := verr.orNil(); err != nil {
		return AuthSession{}, err
	}

	if err := s.api.Register(ctx, reg); err != nil {
		s.logger(ctx, "session.register_failed", map[string]any{"username": reg.Username, "error": err.Error()})
		return AuthSession{}, registrationError(err)
	}
	session, err := s.Login(ctx, apiclient.Credentials{Username: reg.Username, Password: reg.Password})
	if err != nil {
		return AuthSession{}, userError(ErrSessionUnavailable, registrationFailedMessage, err)
	}
	return session, nil
}

// registrationError keeps the API's per-field messages so the form can show them.
func registrationError(err error) error {
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok || apiErr.Status >= 500 {
		return userError(ErrSessionUnavailable, registrationFailedMessage, err)
	}
	verr := newValidationError(ErrSessionInvalidInput)
	for _, field := range apiErr.Fields {
		if len(field.Messages) > 0 {
			verr.add(field.Field, field.Messages[0])
		}
	}
	if verr.empty() {
		return userError(ErrSessionInvalidInput, registrationFailedMessage, err)
	}
	return verr
}

func (s *sessionService) Logout(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return errors.Join(ErrSessionUnavailable, err)
	}
	s.logger(ctx, "session.logout", nil)
	return nil
}

// Refresh exchanges the refresh token for a new access token. Any failure signs the visitor out.
func (s *sessionService) Refresh(ctx context.Context) (AuthSession, error) {
	session, err := s.repo.Load(ctx)
	if err != nil {
		return AuthSession{}, errors.Join(ErrSessionUnavailable, err)
	}
	if session.RefreshToken == "" {
		s.clearSession(ctx)
		return AuthSession{}, ErrSessionExpired
	}
	access, err := s.api.RefreshToken(ctx, session.RefreshToken)
	if err != nil || access == "" {
		s.logger(ctx, "session.refresh_failed", map[string]any{"error": errString(err)})
		s.clearSession(ctx)
		return AuthSession{}, ErrSessionExpired
	}
	if err := s.repo.SaveAccessToken(ctx, access); err != nil {
		return AuthSession{}, errors.Join(ErrSessionUnavailable, err)
	}
	session.AccessToken = access
	user, err := s.loadUser(ctx)
	if err != nil {
		s.clearSession(ctx)
		return AuthSession{}, ErrSessionExpired
	}
	session.User = &user
	return session, nil
}

// Current runs the startup check: an expired token is refreshed, a valid one reloads the
// profile. Failures sign the visitor out.
func (s *sessionService) Current(ctx context.Context) (AuthSession, error) {
	session, err := s.repo.Load(ctx)
	if err != nil {
		return AuthSession{}, errors.Join(ErrSessionUnavailable, err)
	}
	if !session.Authenticated() {
		return AuthSession{}, ErrSessionNotFound
	}
	if s.IsExpired(session.AccessToken) {
		return s.Refresh(ctx)
	}
	user, err := s.loadUser(ctx)
	if err != nil {
		s.logger(ctx, "session.check_failed", map[string]any{"error": err.Error()})
		s.clearSession(ctx)
		return AuthSession{}, ErrSessionExpired
	}
	session.User = &user
	return session, nil
}

// clearSession signs the visitor out on a failure path where the caller already has an error to
// return.
func (s *sessionService) clearSession(ctx context.Context) {
	if err := s.repo.Clear(ctx); err != nil {
		s.logger(ctx, "session.clear_failed", map[string]any{"error": err.Error()})
	}
}

func (s *sessionService) IsExpired(token string) bool {
	return auth.IsExpired(token, s.now())
}

func (s *sessionService) UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (User, error) {
	update.Email = strings.TrimSpace(update.Email)
	update.PhoneNumber = strings.TrimSpace(update.PhoneNumber)
	verr := newValidationError(ErrSessionInvalidInput)
	if !validEmail(update.Email) {
		verr.add("email", "Please enter a valid email address")
	}
	if !validOptionalPhone(update.PhoneNumber) {
		verr.add("phone_number", "Please enter a valid phone number")
	}
	if err := verr.orNil(); err != nil {
		return User{}, err
	}

	user, err := s.api.UpdateProfile(ctx, update)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return User{}, ErrSessionExpired
		}
		return User{}, userError(ErrSessionInvalidInput, profileUpdateFailedMessage, err)
	}
	if err := s.repo.SaveUser(ctx, user); err != nil {
		s.logger(ctx, "session.cache_user_failed", map[string]any{"error": err.Error()})
	}
	return user, nil
}

func (s *sessionService) ChangePassword(ctx context.Context, change apiclient.PasswordChange) error {
	verr := newValidationError(ErrSessionInvalidInput)
	if change.CurrentPassword == "" {
		verr.add("current_password", "Current password is required")
	}
	if problem := passwordProblem(change.NewPassword); problem != "" {
		verr.add("new_password", problem)
	}
	if change.NewPassword != change.ConfirmPassword {
		verr.add("confirm_password", "Passwords don't match")
	}
	if err := verr.orNil(); err != nil {
		return err
	}
	if err := s.api.ChangePassword(ctx, change); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return ErrSessionExpired
		}
		message := passwordChangeFailed
		if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.Status < 500 {
			message = apiErr.Message()
		}
		return userError(ErrSessionInvalidInput, message, err)
	}
	return nil
}

// ResolveIdentity maps the stored session to an identity without calling the API unless the
// profile has not been cached yet.
func (s *sessionService) ResolveIdentity(ctx context.Context) (*auth.Identity, error) {
	session, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !session.Authenticated() {
		return nil, auth.ErrNoSession
	}
	if session.RefreshToken == "" && s.IsExpired(session.AccessToken) {
		return nil, auth.ErrNoSession
	}
	user := session.User
	if user == nil {
		loaded, err := s.loadUser(ctx)
		if err != nil {
			return nil, err
		}
		user = &loaded
	}
	return auth.IdentityForUser(*user), nil
}

func (s *sessionService) loadUser(ctx context.Context) (domain.User, error) {
	user, err := s.api.Me(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
