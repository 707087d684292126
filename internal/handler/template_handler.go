package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

// TemplateHandler handles HTTP requests for message templates
type TemplateHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(repos repository.RepositoryManager, committer *Committer) *TemplateHandler {
	return &TemplateHandler{repos: repos, committer: committer}
}

// SetupTemplateRoutes sets up template routes
func (h *TemplateHandler) SetupTemplateRoutes(router *mux.Router) {
	router.HandleFunc("/templates", h.ListTemplates).Methods("GET")
	router.HandleFunc("/templates", h.CreateTemplate).Methods("POST")
	router.HandleFunc("/templates/categories", h.ListCategories).Methods("GET")
	router.HandleFunc("/templates/import", h.ImportTemplates).Methods("POST")
	router.HandleFunc("/templates/{id}", h.GetTemplate).Methods("GET")
	router.HandleFunc("/templates/{id}", h.UpdateTemplate).Methods("PUT")
	router.HandleFunc("/templates/{id}", h.DeleteTemplate).Methods("DELETE")
	router.HandleFunc("/templates/{id}/use", h.UseTemplate).Methods("POST")
}

// ListTemplates godoc
// @Summary List templates, most used first
// @Tags templates
// @Produce json
// @Param is_active query bool false "Active flag (default true)"
// @Param category query string false "Category"
// @Param type query string false "text, whatsapp_template or email"
// @Param search query string false "Name substring"
// @Success 200 {object} map[string]interface{}
// @Router /api/templates [get]
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active := queryBool(r, "is_active")
	if active == nil {
		t := true
		active = &t
	}

	filter := domain.TemplateFilter{
		IsActive: active,
		Category: q.Get("category"),
		Type:     domain.TemplateType(q.Get("type")),
		Search:   q.Get("search"),
	}

	page := pageRequest(r)
	templates, total, err := h.repos.Template().List(r.Context(), principal(r).CustomerID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "templates", templates, page, total)
}

// ListCategories godoc
// @Summary Template categories
// @Tags templates
// @Produce json
// @Success 200 {array} string
// @Router /api/templates/categories [get]
func (h *TemplateHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repos.Template().Categories(r.Context(), principal(r).CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"categories": categories})
}

// GetTemplate godoc
// @Summary Get a template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} domain.Template
// @Failure 404 {object} map[string]string
// @Router /api/templates/{id} [get]
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.repos.Template().Get(r.Context(), principal(r).CustomerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"template": template})
}

// CreateTemplate godoc
// @Summary Create a template
// @Tags templates
// @Accept json
// @Produce json
// @Param template body domain.CreateTemplateRequest true "Template"
// @Success 201 {object} domain.Template
// @Failure 400 {object} map[string]string
// @Router /api/templates [post]
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var template *domain.Template
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		template, err = u.Template().Create(ctx, u.Principal.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "template", template.ID, map[string]interface{}{"name": template.Name})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "template created successfully", "template": template})
}

// UpdateTemplate godoc
// @Summary Update a template
// @Description Variables are recomputed when the content changes.
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param template body domain.UpdateTemplateRequest true "Fields to change"
// @Success 200 {object} domain.Template
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var template *domain.Template
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		template, err = u.Template().Update(ctx, u.Principal.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "template", template.ID, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "template updated successfully", "template": template})
}

// UseTemplate godoc
// @Summary Render a template
// @Description Substitutes {{name}} placeholders and bumps the usage counter.
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param body body domain.UseTemplateRequest true "Placeholder values"
// @Success 200 {object} domain.RenderedTemplate
// @Failure 404 {object} map[string]string
// @Router /api/templates/{id}/use [post]
func (h *TemplateHandler) UseTemplate(w http.ResponseWriter, r *http.Request) {
	var req domain.UseTemplateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	id := mux.Vars(r)["id"]
	var rendered *domain.RenderedTemplate
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		rendered, err = u.Template().Use(ctx, u.Principal.CustomerID, id, req.Values())
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rendered)
}

// ImportTemplates godoc
// @Summary Bulk-create templates
// @Tags templates
// @Accept json
// @Produce json
// @Param body body object true "{templates: [...]}"
// @Success 200 {object} domain.ImportTemplatesResult
// @Failure 400 {object} map[string]string
// @Router /api/templates/import [post]
func (h *TemplateHandler) ImportTemplates(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Templates []domain.CreateTemplateRequest `json:"templates"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if len(body.Templates) == 0 {
		writeError(w, r, domain.InvalidInput("templates list is required"))
		return
	}

	var result *domain.ImportTemplatesResult
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		result, err = u.Template().Import(ctx, u.Principal.CustomerID, body.Templates)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionImport, "template", "", map[string]interface{}{
			"created": result.Created,
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
		"errors":  result.Errors,
	})
}

// DeleteTemplate godoc
// @Summary Delete a template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		if err := u.Template().Delete(ctx, u.Principal.CustomerID, id); err != nil {
			return err
		}
		u.Audit(domain.ActionDelete, "template", id, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "template deleted successfully"})
}
