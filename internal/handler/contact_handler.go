package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

// ContactHandler handles HTTP requests for contacts
type ContactHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewContactHandler creates a new contact handler
func NewContactHandler(repos repository.RepositoryManager, committer *Committer) *ContactHandler {
	return &ContactHandler{repos: repos, committer: committer}
}

// SetupContactRoutes sets up contact routes
func (h *ContactHandler) SetupContactRoutes(router *mux.Router) {
	router.HandleFunc("/contacts", h.ListContacts).Methods("GET")
	router.HandleFunc("/contacts", h.CreateContact).Methods("POST")
	router.HandleFunc("/contacts/import", h.ImportContacts).Methods("POST")
	router.HandleFunc("/contacts/{id}", h.GetContact).Methods("GET")
	router.HandleFunc("/contacts/{id}", h.UpdateContact).Methods("PUT")
	router.HandleFunc("/contacts/{id}/block", h.BlockContact).Methods("POST")
	router.HandleFunc("/contacts/{id}/unblock", h.UnblockContact).Methods("POST")
}

// ListContacts godoc
// @Summary List contacts
// @Tags contacts
// @Produce json
// @Param search query string false "Substring over name, email and phone"
// @Param tags query string false "Comma separated tags; all must match"
// @Param include_blocked query boolean false "Include blocked contacts"
// @Param page query int false "Page"
// @Param per_page query int false "Page size (max 100)"
// @Success 200 {object} map[string]interface{}
// @Router /api/contacts [get]
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ContactFilter{
		Search: q.Get("search"),
		Tags:   domain.SplitCSV(q.Get("tags")),
	}
	if b := queryBool(r, "include_blocked"); b != nil {
		filter.IncludeBlocked = *b
	}

	page := pageRequest(r)
	contacts, total, err := h.repos.Contact().List(r.Context(), principal(r).CustomerID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "contacts", contacts, page, total)
}

// GetContact godoc
// @Summary Get a contact with its activity counters
// @Tags contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/contacts/{id} [get]
func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	customerID := principal(r).CustomerID
	id := mux.Vars(r)["id"]

	contact, err := h.repos.Contact().Get(r.Context(), customerID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.repos.Contact().Stats(r.Context(), customerID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"contact": contact, "stats": stats})
}

// CreateContact godoc
// @Summary Create a contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param contact body domain.CreateContactRequest true "Contact"
// @Success 201 {object} domain.Contact
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Email or phone already exists"
// @Router /api/contacts [post]
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateContactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var contact *domain.Contact
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		contact, err = u.Contact().Create(ctx, u.Principal.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "contact", contact.ID, nil)
		u.Emit(domain.NewEvent(domain.EventContactCreated, u.Principal.CustomerID, contact))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "contact created successfully", "contact": contact})
}

// UpdateContact godoc
// @Summary Update a contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param contact body domain.UpdateContactRequest true "Fields to change"
// @Success 200 {object} domain.Contact
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/contacts/{id} [put]
func (h *ContactHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateContactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var contact *domain.Contact
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		contact, err = u.Contact().Update(ctx, u.Principal.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "contact", contact.ID, nil)
		u.Emit(domain.NewEvent(domain.EventContactUpdated, u.Principal.CustomerID, contact))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "contact updated successfully", "contact": contact})
}

// BlockContact godoc
// @Summary Block a contact
// @Tags contacts
// @Param id path string true "Contact ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/contacts/{id}/block [post]
func (h *ContactHandler) BlockContact(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// UnblockContact godoc
// @Summary Unblock a contact
// @Tags contacts
// @Param id path string true "Contact ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/contacts/{id}/unblock [post]
func (h *ContactHandler) UnblockContact(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *ContactHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	id := mux.Vars(r)["id"]
	var contact *domain.Contact
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		contact, err = u.Contact().SetBlocked(ctx, u.Principal.CustomerID, id, blocked)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "contact", contact.ID, map[string]interface{}{"is_blocked": blocked})
		u.Emit(domain.NewEvent(domain.EventContactUpdated, u.Principal.CustomerID, contact))
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "contact unblocked successfully"
	if blocked {
		message = "contact blocked successfully"
	}
	writeJSON(w, http.StatusOK, envelope{"message": message, "contact": contact})
}

type importContactsRequest struct {
	Contacts []domain.CreateContactRequest `json:"contacts"`
}

// ImportContacts godoc
// @Summary Bulk upsert contacts by email or phone
// @Tags contacts
// @Accept json
// @Produce json
// @Param body body importContactsRequest true "Contacts"
// @Success 200 {object} domain.ImportContactsResult
// @Failure 400 {object} map[string]string
// @Router /api/contacts/import [post]
func (h *ContactHandler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var req importContactsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Contacts) == 0 {
		writeError(w, r, domain.InvalidInput("contacts are required"))
		return
	}

	var result *domain.ImportContactsResult
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		result, err = u.Contact().Import(ctx, u.Principal.CustomerID, req.Contacts)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionImport, "contact", "", map[string]interface{}{
			"created": result.Created,
			"updated": result.Updated,
			"errors":  len(result.Errors),
		})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "import completed",
		"created": result.Created,
		"updated": result.Updated,
		"errors":  result.Errors,
	})
}
