package user

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/auth"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-ids-console/internal/user/repo"
)

// Repository is the credential-store surface the service needs.
type Repository interface {
	Create(ctx context.Context, a *entity.Account) (int64, error)
	GetByUsername(ctx context.Context, username string) (*entity.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTakenByOther(ctx context.Context, email string, exceptID int64) (bool, error)
	List(ctx context.Context) ([]entity.Account, error)
	Update(ctx context.Context, a *entity.Account) (int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(c auth.Claims) (string, time.Time, error)
}

const (
	minPasswordLen = 8
	// bcrypt rejects longer inputs
	maxPasswordLen = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrFieldsRequired      = apperr.Validation("All fields are required.")
	ErrInvalidEmail        = apperr.Validation("Invalid email format.")
	ErrPasswordTooShort    = apperr.Validation("Password must be at least 8 characters long.")
	ErrPasswordTooLong     = apperr.Validation("Password must be at most 72 bytes long.")
	ErrInvalidRole         = apperr.Validation("Invalid role.")
	ErrAccountExists       = apperr.Conflict("Username or email already exists.")
	ErrBadCredentials      = apperr.Unauthenticated("Invalid credentials")
	ErrUserNotFound        = apperr.NotFound("User not found")
	ErrOldPasswordRequired = apperr.Validation("Old password is required to update your password")
	ErrOldPasswordWrong    = apperr.Validation("Old password is incorrect")
	ErrUsernameTaken       = apperr.Conflict("Username already exists. Please choose another one.")
	ErrEmailTaken          = apperr.Conflict("Email already exists.")
	ErrNotAccountOwner     = apperr.Forbidden("You can only update your own account.")
	ErrNoIDs               = apperr.Validation("No user IDs provided for deletion.")
	ErrAdminOnly           = apperr.Forbidden("Only administrators can delete users.")
)

// UserService implements registration, login and account management over
// the credential store.
type UserService struct {
	repo   Repository
	hasher auth.PasswordHasher
	tokens TokenIssuer
}

func NewUserService(db *sqlx.DB, r Repository, hasher auth.PasswordHasher, tokens TokenIssuer) *UserService {
	if r == nil {
		r = userrepo.NewUserRepo(db)
	}
	if hasher == nil {
		hasher = auth.BcryptHasher{Cost: auth.PasswordCost}
	}
	return &UserService{repo: r, hasher: hasher, tokens: tokens}
}

type RegisterInput struct {
	Role     string `json:"role"`
	FullName string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register validates in, first failure wins, then stores a new account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entity.Account, error) {
	if in.Role == "" || in.FullName == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, ErrFieldsRequired
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}
	if len(in.Password) > maxPasswordLen {
		return nil, ErrPasswordTooLong
	}
	if !entity.ValidRole(in.Role) {
		return nil, ErrInvalidRole
	}
	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, apperr.Store("Internal server error.", err)
	}
	if exists {
		return nil, ErrAccountExists
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Store("Error registering user.", err)
	}
	a := &entity.Account{
		Role:         in.Role,
		FullName:     in.FullName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if _, err := s.repo.Create(ctx, a); err != nil {
		// lost a race with a concurrent registration
		if userrepo.IsUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, apperr.Store("Error registering user.", err)
	}
	return a, nil
}

// LoginUser is the minimal account summary returned on login.
type LoginUser struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      LoginUser
}

// Login checks credentials. Unknown usernames and wrong passwords produce
// the same failure.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrBadCredentials
	}
	a, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, apperr.Store("Internal server error during login", err)
	}
	if !s.hasher.Verify(a.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	token, exp, err := s.tokens.Issue(claimsFor(a))
	if err != nil {
		return nil, apperr.Store("Internal server error during login", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: LoginUser{ID: a.ID, Role: a.Role}}, nil
}

type UpdateInput struct {
	FullName    string `json:"fullname"`
	Email       string `json:"email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
	NewUsername string `json:"newUsername"`
}

// UpdateAccount changes the target account. The acting user must be the
// target or an Admin. A refreshed token is returned only when users update
// themselves; an Admin editing someone else gets an empty token.
func (s *UserService) UpdateAccount(ctx context.Context, actor *auth.Claims, target string, in UpdateInput) (string, error) {
	self := actor != nil && actor.Username == target
	if !self && (actor == nil || actor.Role != entity.RoleAdmin) {
		return "", ErrNotAccountOwner
	}

	a, err := s.repo.GetByUsername(ctx, target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", apperr.Store("Internal server error", err)
	}

	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if in.FullName == "" || in.Email == "" {
		return "", apperr.Validation("Full name and email are required.")
	}
	if !emailPattern.MatchString(in.Email) {
		return "", ErrInvalidEmail
	}

	if in.NewPassword != "" {
		if in.OldPassword == "" {
			return "", ErrOldPasswordRequired
		}
		if !s.hasher.Verify(a.PasswordHash, in.OldPassword) {
			return "", ErrOldPasswordWrong
		}
		if len(in.NewPassword) < minPasswordLen {
			return "", ErrPasswordTooShort
		}
		if len(in.NewPassword) > maxPasswordLen {
			return "", ErrPasswordTooLong
		}
	}

	newUsername := a.Username
	if in.NewUsername != "" && in.NewUsername != a.Username {
		taken, err := s.repo.UsernameTaken(ctx, in.NewUsername)
		if err != nil {
			return "", apperr.Store("Internal server error", err)
		}
		if taken {
			return "", ErrUsernameTaken
		}
		newUsername = in.NewUsername
	}

	if in.Email != a.Email {
		taken, err := s.repo.EmailTakenByOther(ctx, in.Email, a.ID)
		if err != nil {
			return "", apperr.Store("Internal server error", err)
		}
		if taken {
			return "", ErrEmailTaken
		}
	}

	updated := *a
	updated.FullName = in.FullName
	updated.Email = in.Email
	updated.Username = newUsername
	if in.NewPassword != "" {
		hash, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return "", apperr.Store("Internal server error", err)
		}
		updated.PasswordHash = hash
	}

	n, err := s.repo.Update(ctx, &updated)
	if err != nil {
		if userrepo.IsUniqueViolation(err) {
			return "", apperr.Conflict("Username or email already exists.")
		}
		return "", apperr.Store("Internal server error", err)
	}
	if n == 0 {
		return "", ErrUserNotFound
	}

	if !self {
		return "", nil
	}
	token, _, err := s.tokens.Issue(claimsFor(&updated))
	if err != nil {
		return "", apperr.Store("Internal server error", err)
	}
	return token, nil
}

// GetAccount returns the public view of one account.
func (s *UserService) GetAccount(ctx context.Context, username string) (*entity.AccountView, error) {
	a, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Store("Error fetching user details", err)
	}
	v := a.View()
	return &v, nil
}

// ListAccounts returns every account with id and creation date.
func (s *UserService) ListAccounts(ctx context.Context) ([]entity.AccountView, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Store("Internal server error", err)
	}
	out := make([]entity.AccountView, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ListView())
	}
	return out, nil
}

// DeleteAccounts removes exactly ids. Only Admins may delete.
func (s *UserService) DeleteAccounts(ctx context.Context, actor *auth.Claims, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}
	if actor == nil || actor.Role != entity.RoleAdmin {
		return 0, ErrAdminOnly
	}
	n, err := s.repo.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, apperr.Store("Internal server error", err)
	}
	return n, nil
}

func claimsFor(a *entity.Account) auth.Claims {
	return auth.Claims{
		AccountID: a.ID,
		Role:      a.Role,
		Username:  a.Username,
		FullName:  a.FullName,
		Email:     a.Email,
	}
}
