package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/auth"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/repository"
)

// errBadCredentials covers both unknown usernames and wrong passwords.
//
// One message for both cases means the login form cannot be used to find
// out which usernames exist.
var errBadCredentials = apperror.Unauthorized("invalid username or password")

// RegisterForm is the sign-up form.
type RegisterForm struct {
	Username string `form:"username" validate:"required,min=3,max=50,username"`
	Email    string `form:"email"    validate:"omitempty,email,max=254"`
	Password string `form:"password" validate:"required,min=8"`
}

// AuthResult bundles the authenticated user with the token to set as the
// session cookie.
type AuthResult struct {
	User  *model.User
	Token string
}

// AccountService handles registration and the three ways of signing in:
// password, GitHub, and an existing token.
//
// ACCOUNT KINDS:
//
//	local:   username + bcrypt hash, GitHubID 0
//	GitHub:  GitHubID set, PasswordHash empty (password login refused)
//
// Both kinds end in the same AuthResult: a user and a freshly signed JWT
// for the handler to put in the token cookie.
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  newValidator(),
		logger:    logger,
	}
}

// Register creates a local account and signs it in.
func (s *AccountService) Register(ctx context.Context, form RegisterForm) (*AuthResult, error) {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	if err := validateForm(s.validate, form); err != nil {
		return nil, err
	}
	// The validator counts runes; bcrypt's limit is in bytes.
	if len(form.Password) > auth.MaxPasswordBytes {
		return nil, FormErrors{"password": fmt.Sprintf("Ensure this value has at most %d bytes.", auth.MaxPasswordBytes)}
	}

	hash, err := s.passwords.Hash(form.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	user := &model.User{
		Username:     form.Username,
		Email:        form.Email,
		PasswordHash: hash,
	}
	// The UNIQUE index on username decides races between two sign-ups; no
	// lookup beforehand.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, FormErrors{"username": "A user with that username already exists."}
		}
		return nil, fmt.Errorf("service/account: creating user %q: %w", form.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Login checks a username and password.
//
// Every failure the user could cause (unknown name, wrong password,
// GitHub-only account, blank field) returns errBadCredentials. Only
// storage and hash corruption errors pass through, and those become 500s.
func (s *AccountService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errBadCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/account: looking up %q: %w", username, err)
	}

	// GitHub-only accounts have no password to check against.
	if user.PasswordHash == "" {
		return nil, errBadCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/account: verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub signs in the account linked to a GitHub profile,
// creating it on first login and refreshing email and avatar afterwards.
//
// The GitHub ID is the key, not the login: a user who renames themselves
// on GitHub keeps their bookmarks. Upsert fills in user.ID either way.
func (s *AccountService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, errors.New("service/account: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Username:  ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// GetUserByID returns the account with the given ID.
func (s *AccountService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("not logged in")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/account: fetching user %s: %w", id, err)
	}
	return user, nil
}

// issue signs a session token for user.
func (s *AccountService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
