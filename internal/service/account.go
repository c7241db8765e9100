package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/authapi/internal/model"
	"github.com/templui/authapi/internal/repository"
	"github.com/templui/authapi/internal/validation"
)

const TokenTypeBearer = "bearer"

type AuthResult struct {
	AccessToken string
	TokenType   string
	User        model.PublicUser
}

// ProfileUpdate carries the optional changes of an update. A nil field means
// "leave unchanged".
type ProfileUpdate struct {
	Username        *string
	CurrentPassword *string
	NewPassword     *string
	Avatar          *AvatarUpload
	DeleteAvatar    bool
}

type ProfileResult struct {
	User model.PublicUser
	// AccessToken is set when the username changed, since the old token's
	// subject no longer resolves.
	AccessToken string
}

type ResetRequest struct {
	Message   string
	Sent      bool
	Token     string
	ResetLink string
}

type AccountService struct {
	users        repository.UserRepository
	hasher       PasswordHasher
	tokens       *TokenService
	avatars      *AvatarService
	mailer       Mailer
	resetURLBase string
	resetExpiry  time.Duration
	now          func() time.Time
}

func NewAccountService(
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenService,
	avatars *AvatarService,
	mailer Mailer,
	resetURLBase string,
	resetExpiry time.Duration,
) *AccountService {
	return &AccountService{
		users:        users,
		hasher:       hasher,
		tokens:       tokens,
		avatars:      avatars,
		mailer:       mailer,
		resetURLBase: strings.TrimSuffix(resetURLBase, "/"),
		resetExpiry:  resetExpiry,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *AccountService) Signup(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = validation.NormalizeUsername(username)
	email = validation.NormalizeEmail(email)

	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// Friendly pre-checks; the unique constraints below are what actually hold.
	taken, err := s.exists(s.users.ByEmail(ctx, email))
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errEmailRegistered
	}
	taken, err = s.exists(s.users.ByUsername(ctx, username))
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errUsernameRegistered
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.users.Create(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, errEmailRegistered
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, errUsernameRegistered
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up", "user_id", user.ID)

	return s.authResult(user)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.ByEmail(ctx, validation.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, errBadLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, errBadLogin
	}

	return s.authResult(user)
}

// Authenticate resolves a session token to the current user record.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	username, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.ByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			slog.Error("failed to load token subject", "error", err)
		}
		return nil, ErrUnauthenticated
	}

	return user, nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (model.PublicUser, error) {
	user, err := s.users.ByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.PublicUser{}, fmt.Errorf("%w: User not found", ErrNotFound)
	}
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("failed to get user: %w", err)
	}

	return user.Public(), nil
}

// UpdateProfile applies every requested change in one record update. Checks
// run before any file is written; a new avatar is stored before the update and
// removed again if the update fails, the replaced one only after it succeeded.
func (s *AccountService) UpdateProfile(ctx context.Context, caller *model.User, in ProfileUpdate) (*ProfileResult, error) {
	user := *caller
	usernameChanged := false
	var changes repository.ProfileChanges

	if in.Username != nil {
		username := validation.NormalizeUsername(*in.Username)
		if username != user.Username {
			if err := validation.ValidateUsername(username); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrValidation, err)
			}

			other, err := s.users.ByUsername(ctx, username)
			switch {
			case err == nil && other.ID != user.ID:
				return nil, errUsernameTaken
			case err != nil && !errors.Is(err, repository.ErrUserNotFound):
				return nil, fmt.Errorf("failed to get user: %w", err)
			}

			user.Username = username
			usernameChanged = true
		}
	}

	if in.NewPassword != nil {
		if in.CurrentPassword == nil {
			return nil, fmt.Errorf("%w: Current password required to change password", ErrValidation)
		}
		if err := validation.ValidatePassword(*in.NewPassword); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if !s.hasher.Verify(*in.CurrentPassword, user.PasswordHash) {
			return nil, errWrongPassword
		}

		hash, err := s.hasher.Hash(*in.NewPassword)
		if err != nil {
			return nil, err
		}
		changes.CurrentHash = user.PasswordHash
		changes.PasswordHash = hash
		user.PasswordHash = hash
	}

	var replaced string
	if in.DeleteAvatar && user.HasAvatar() {
		replaced = *user.ProfilePic
		user.ProfilePic = nil
	}

	var stored string
	if in.Avatar != nil {
		name, err := s.avatars.Save(ctx, *in.Avatar)
		if err != nil {
			return nil, err
		}
		stored = name
		if replaced == "" && user.HasAvatar() {
			replaced = *user.ProfilePic
		}
		user.ProfilePic = &stored
	}

	user.UpdatedAt = s.now()
	changes.Username = user.Username
	changes.ProfilePic = user.ProfilePic
	changes.UpdatedAt = user.UpdatedAt

	err := s.users.UpdateProfile(ctx, user.ID, changes)
	if err != nil {
		if stored != "" {
			s.avatars.Remove(ctx, stored)
		}
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, errUsernameTaken
		case errors.Is(err, repository.ErrPasswordChanged):
			// Reset since the caller was loaded; the verified password is stale.
			return nil, errWrongPassword
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if replaced != "" {
		s.avatars.Remove(ctx, replaced)
	}

	result := &ProfileResult{User: user.Public()}
	if usernameChanged {
		token, err := s.tokens.Issue(user.Username)
		if err != nil {
			return nil, err
		}
		result.AccessToken = token
	}

	*caller = user
	return result, nil
}

func (s *AccountService) DeleteAvatar(ctx context.Context, caller *model.User) error {
	if !caller.HasAvatar() {
		return fmt.Errorf("%w: No profile photo to delete", ErrNotFound)
	}

	user := *caller
	name := *user.ProfilePic
	user.ProfilePic = nil
	user.UpdatedAt = s.now()

	err := s.users.ClearProfilePic(ctx, user.ID, name, user.UpdatedAt)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Replaced or removed by another request in the meantime.
		return fmt.Errorf("%w: No profile photo to delete", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.avatars.Remove(ctx, name)

	*caller = user
	return nil
}

// ForgotPassword stores a fresh reset token, replacing any pending one, and
// tries to mail the link. A delivery failure is reported in the result only.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) (*ResetRequest, error) {
	user, err := s.users.ByEmail(ctx, validation.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: Email not found", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.users.SetResetToken(ctx, user.ID, token, now.Add(s.resetExpiry), now)
	if err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}

	link := s.resetURLBase + "/reset-password/" + token

	sent, err := s.mailer.SendResetLink(ctx, user.Email, link)
	if err != nil {
		slog.Warn("failed to send reset email", "user_id", user.ID, "error", err)
		sent = false
	}

	message := "Reset token generated (email not sent)"
	if sent {
		message = "Reset token generated and email sent"
	}

	return &ResetRequest{
		Message:   message,
		Sent:      sent,
		Token:     token,
		ResetLink: link,
	}, nil
}

// ResetPassword exchanges a pending reset token for a new password. The token
// is consumed with a compare-and-set update, so it works at most once.
func (s *AccountService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return fmt.Errorf("%w: Passwords do not match", ErrValidation)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if token == "" {
		return errInvalidResetToken
	}

	user, err := s.users.ByResetToken(ctx, token)
	if errors.Is(err, repository.ErrUserNotFound) {
		return errInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	now := s.now()
	if user.ResetTokenExpired(now) {
		if _, err := s.users.ClearExpiredResetTokens(ctx, now); err != nil {
			slog.Warn("failed to clear expired reset tokens", "error", err)
		}
		return fmt.Errorf("%w: Reset token has expired", ErrInvalidToken)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	err = s.users.ConsumeResetToken(ctx, user.ID, token, hash, now)
	if errors.Is(err, repository.ErrResetTokenNotFound) {
		return errInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	slog.Info("password reset", "user_id", user.ID)
	return nil
}

// PurgeExpiredResetTokens drops every reset token past its deadline.
func (s *AccountService) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	return s.users.ClearExpiredResetTokens(ctx, s.now())
}

var (
	errEmailRegistered    = fmt.Errorf("%w: Email already registered", ErrConflict)
	errUsernameRegistered = fmt.Errorf("%w: Username already registered", ErrConflict)
	errUsernameTaken      = fmt.Errorf("%w: Username already taken", ErrConflict)
	errBadLogin           = fmt.Errorf("%w: Incorrect email or password", ErrInvalidCredentials)
	errWrongPassword      = fmt.Errorf("%w: Current password is incorrect", ErrInvalidCredentials)
	errInvalidResetToken  = fmt.Errorf("%w: Invalid token", ErrInvalidToken)
)

func (s *AccountService) exists(_ *model.User, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrUserNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to get user: %w", err)
	}
}

func (s *AccountService) authResult(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		User:        user.Public(),
	}, nil
}
