package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/pkg/jwtutil"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/ClareAI/astra-crm-service/pkg/password"
	"go.uber.org/zap"
)

// LoginRequest represents the credentials of a login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest creates a tenant and its first admin
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Phone     string `json:"phone,omitempty"`
}

// Validate reports the first missing required field.
func (r *RegisterRequest) Validate() error {
	required := []struct{ name, value string }{
		{"email", r.Email},
		{"password", r.Password},
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"company", r.Company},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return domain.InvalidInput("%s is required", f.name)
		}
	}
	return nil
}

// ChangePasswordRequest represents a password change of the caller
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Session is returned by login and register
type Session struct {
	AccessToken string           `json:"access_token"`
	User        *domain.User     `json:"user"`
	Customer    *domain.Customer `json:"customer,omitempty"`
}

// Service authenticates callers and resolves them to a tenant scope
type Service struct {
	repos  repository.RepositoryManager
	tokens *jwtutil.Manager
}

// NewService creates a new auth service
func NewService(repos repository.RepositoryManager, tokens *jwtutil.Manager) *Service {
	return &Service{repos: repos, tokens: tokens}
}

// Resolve is the tenant resolver: it loads the user behind a validated
// identifier and returns the scope every later operation runs under.
// Missing and inactive users are both NotFound.
func (s *Service) Resolve(ctx context.Context, userID string) (*domain.Principal, error) {
	user, err := s.repos.User().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.NotFound("user not found")
	}

	return &domain.Principal{
		UserID:     user.ID,
		CustomerID: user.CustomerID,
		Role:       user.Role,
	}, nil
}

// Authenticate validates a bearer token and resolves its subject.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, domain.Unauthorized("invalid or expired token")
	}
	return s.Resolve(ctx, claims.Subject)
}

// Login checks credentials and issues an access token
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*Session, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, domain.InvalidInput("email and password are required")
	}

	user, err := s.repos.User().FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.Unauthorized("invalid credentials")
	}
	if err := password.Verify(user.PasswordHash, req.Password); err != nil {
		return nil, domain.Unauthorized("invalid credentials")
	}

	customer, err := s.repos.Customer().GetByID(ctx, user.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.IsActive {
		return nil, domain.Forbidden("account suspended")
	}

	now := time.Now().UTC()
	if err := s.repos.User().TouchLastLogin(ctx, user.ID, now); err != nil {
		// login still succeeds
		logger.Warn(ctx, "Failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	token, err := s.tokens.Generate(user.ID, user.CustomerID, string(user.Role))
	if err != nil {
		return nil, domain.Internal(err, "failed to issue token")
	}

	return &Session{AccessToken: token, User: user, Customer: customer}, nil
}

// Register creates a tenant on the starter plan and its admin user in one transaction
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, domain.Internal(err, "failed to hash password")
	}

	var (
		customer *domain.Customer
		user     *domain.User
	)
	err = s.repos.WithTx(ctx, func(ctx context.Context, repos repository.RepositoryManager) error {
		exists, err := repos.Customer().ExistsByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if exists {
			return domain.Conflict("email already registered")
		}

		customer, err = repos.Customer().Create(ctx, &domain.CreateCustomerRequest{
			Name:    req.Company,
			Email:   req.Email,
			Phone:   req.Phone,
			Company: req.Company,
		})
		if err != nil {
			return err
		}

		user, err = repos.User().Create(ctx, customer.ID, &domain.CreateUserRequest{
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Role:         domain.RoleAdmin,
		})
		if err != nil {
			return err
		}

		principal := domain.Principal{UserID: user.ID, CustomerID: customer.ID, Role: user.Role}
		return repos.ActivityLog().Append(ctx, domain.NewActivityLog(principal, domain.ActionCreate, "customer", customer.ID, map[string]interface{}{
			"company": customer.Company,
		}))
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID, customer.ID, string(user.Role))
	if err != nil {
		return nil, domain.Internal(err, "failed to issue token")
	}

	logger.Info(ctx, "Customer registered", zap.String("customer_id", customer.ID), zap.String("user_id", user.ID))
	return &Session{AccessToken: token, User: user, Customer: customer}, nil
}

// Me returns the caller and its tenant
func (s *Service) Me(ctx context.Context, p *domain.Principal) (*domain.User, *domain.Customer, error) {
	user, err := s.repos.User().Get(ctx, p.CustomerID, p.UserID)
	if err != nil {
		return nil, nil, err
	}
	customer, err := s.repos.Customer().GetByID(ctx, p.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	return user, customer, nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *Service) ChangePassword(ctx context.Context, p *domain.Principal, req *ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return domain.InvalidInput("current_password and new_password are required")
	}

	user, err := s.repos.User().Get(ctx, p.CustomerID, p.UserID)
	if err != nil {
		return err
	}
	if err := password.Verify(user.PasswordHash, req.CurrentPassword); err != nil {
		return domain.InvalidInput("current password is incorrect")
	}

	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return domain.Internal(err, "failed to hash password")
	}
	return s.repos.User().UpdatePassword(ctx, p.CustomerID, p.UserID, hash)
}

// PrepareUser validates a new user request and replaces its plain password with a hash.
func PrepareUser(req *domain.CreateUserRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.Internal(err, "failed to hash password")
	}
	req.PasswordHash = hash
	req.Password = ""
	return nil
}
