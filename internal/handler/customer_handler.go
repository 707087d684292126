package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/internal/services/auth"
	"github.com/gorilla/mux"
)

// CustomerHandler handles the caller's tenant profile, settings and users
type CustomerHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(repos repository.RepositoryManager, committer *Committer) *CustomerHandler {
	return &CustomerHandler{repos: repos, committer: committer}
}

// SetupCustomerRoutes sets up customer routes
func (h *CustomerHandler) SetupCustomerRoutes(router *mux.Router) {
	router.HandleFunc("/customers/profile", h.GetProfile).Methods("GET")
	router.HandleFunc("/customers/profile", h.UpdateProfile).Methods("PUT")
	router.HandleFunc("/customers/settings", h.GetSettings).Methods("GET")
	router.HandleFunc("/customers/settings", h.UpdateSettings).Methods("PUT")
	router.HandleFunc("/customers/users", h.ListUsers).Methods("GET")
	router.HandleFunc("/customers/users", h.CreateUser).Methods("POST")
	router.HandleFunc("/customers/users/{id}", h.UpdateUser).Methods("PUT")
}

// GetProfile godoc
// @Summary Get the tenant profile
// @Tags customers
// @Produce json
// @Success 200 {object} domain.Customer
// @Router /api/customers/profile [get]
func (h *CustomerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	customer, err := h.repos.Customer().GetByID(r.Context(), principal(r).CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"customer": customer})
}

// UpdateProfile godoc
// @Summary Update the tenant profile (admin)
// @Tags customers
// @Accept json
// @Produce json
// @Param profile body domain.UpdateCustomerProfileRequest true "Profile fields"
// @Success 200 {object} domain.Customer
// @Failure 403 {object} map[string]string
// @Router /api/customers/profile [put]
func (h *CustomerHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpCustomerProfileUpdate); err != nil {
		writeError(w, r, err)
		return
	}

	var req domain.UpdateCustomerProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var customer *domain.Customer
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		customer, err = u.Customer().UpdateProfile(ctx, p.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "customer", customer.ID, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "profile updated successfully", "customer": customer})
}

// GetSettings godoc
// @Summary Tenant settings merged over the defaults
// @Tags customers
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/customers/settings [get]
func (h *CustomerHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	customer, err := h.repos.Customer().GetByID(r.Context(), principal(r).CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"settings": domain.MergeSettings(domain.DefaultCustomerSettings(), customer.Settings),
	})
}

// UpdateSettings godoc
// @Summary Shallow-merge settings into the stored tenant settings (admin)
// @Tags customers
// @Accept json
// @Produce json
// @Param settings body map[string]interface{} true "Settings sections"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/customers/settings [put]
func (h *CustomerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpCustomerSettingsWrite); err != nil {
		writeError(w, r, err)
		return
	}

	var body map[string]interface{}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	var settings map[string]interface{}
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		settings, err = u.Customer().MergeSettings(ctx, p.CustomerID, body)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "customer_settings", p.CustomerID, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "settings updated successfully", "settings": settings})
}

// ListUsers godoc
// @Summary List tenant users (admin, manager)
// @Tags customers
// @Produce json
// @Param page query int false "Page"
// @Param per_page query int false "Page size (max 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /api/customers/users [get]
func (h *CustomerHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpUserList); err != nil {
		writeError(w, r, err)
		return
	}

	page := pageRequest(r)
	users, total, err := h.repos.User().List(r.Context(), p.CustomerID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "users", users, page, total)
}

// CreateUser godoc
// @Summary Add a user to the tenant (admin)
// @Tags customers
// @Accept json
// @Produce json
// @Param user body domain.CreateUserRequest true "User"
// @Success 201 {object} domain.User
// @Failure 400 {object} map[string]string "Missing fields or invalid role"
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string "Email already registered"
// @Router /api/customers/users [post]
func (h *CustomerHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpUserCreate); err != nil {
		writeError(w, r, err)
		return
	}

	var req domain.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.PrepareUser(&req); err != nil {
		writeError(w, r, err)
		return
	}

	var user *domain.User
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		user, err = u.User().Create(ctx, p.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "user", user.ID, map[string]interface{}{"email": user.Email, "role": string(user.Role)})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "user created successfully", "user": user})
}

// UpdateUser godoc
// @Summary Update a tenant user (admin)
// @Tags customers
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param user body domain.UpdateUserRequest true "Fields to change"
// @Success 200 {object} domain.User
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/customers/users/{id} [put]
func (h *CustomerHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := domain.Authorize(p.Role, domain.OpUserUpdate); err != nil {
		writeError(w, r, err)
		return
	}

	var req domain.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var user *domain.User
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		user, err = u.User().Update(ctx, p.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "user", user.ID, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "user updated successfully", "user": user})
}
