package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/gorilla/mux"
)

// AutomationHandler handles HTTP requests for automations
type AutomationHandler struct {
	repos     repository.RepositoryManager
	committer *Committer
}

// NewAutomationHandler creates a new automation handler
func NewAutomationHandler(repos repository.RepositoryManager, committer *Committer) *AutomationHandler {
	return &AutomationHandler{repos: repos, committer: committer}
}

// SetupAutomationRoutes sets up automation routes
func (h *AutomationHandler) SetupAutomationRoutes(router *mux.Router) {
	router.HandleFunc("/automations", h.ListAutomations).Methods("GET")
	router.HandleFunc("/automations", h.CreateAutomation).Methods("POST")
	router.HandleFunc("/automations/templates", h.ListTemplates).Methods("GET")
	router.HandleFunc("/automations/{id}", h.GetAutomation).Methods("GET")
	router.HandleFunc("/automations/{id}", h.UpdateAutomation).Methods("PUT")
	router.HandleFunc("/automations/{id}", h.DeleteAutomation).Methods("DELETE")
	router.HandleFunc("/automations/{id}/toggle", h.ToggleAutomation).Methods("POST")
	router.HandleFunc("/automations/{id}/test", h.TestAutomation).Methods("POST")
}

// ListAutomations godoc
// @Summary List automations
// @Tags automations
// @Produce json
// @Param is_active query bool false "Active flag"
// @Param trigger_type query string false "Trigger type"
// @Success 200 {object} map[string]interface{}
// @Router /api/automations [get]
func (h *AutomationHandler) ListAutomations(w http.ResponseWriter, r *http.Request) {
	filter := domain.AutomationFilter{
		IsActive:    queryBool(r, "is_active"),
		TriggerType: domain.TriggerType(r.URL.Query().Get("trigger_type")),
	}

	page := pageRequest(r)
	automations, total, err := h.repos.Automation().List(r.Context(), principal(r).CustomerID, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "automations", automations, page, total)
}

// ListTemplates godoc
// @Summary Built-in automation templates
// @Tags automations
// @Produce json
// @Success 200 {array} domain.AutomationTemplate
// @Router /api/automations/templates [get]
func (h *AutomationHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"templates": domain.AutomationTemplates()})
}

// GetAutomation godoc
// @Summary Get an automation
// @Tags automations
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} domain.Automation
// @Failure 404 {object} map[string]string
// @Router /api/automations/{id} [get]
func (h *AutomationHandler) GetAutomation(w http.ResponseWriter, r *http.Request) {
	automation, err := h.repos.Automation().Get(r.Context(), principal(r).CustomerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"automation": automation})
}

// CreateAutomation godoc
// @Summary Create an automation
// @Tags automations
// @Accept json
// @Produce json
// @Param automation body domain.CreateAutomationRequest true "Automation"
// @Success 201 {object} domain.Automation
// @Failure 400 {object} map[string]string
// @Router /api/automations [post]
func (h *AutomationHandler) CreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAutomationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var automation *domain.Automation
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		automation, err = u.Automation().Create(ctx, u.Principal.CustomerID, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionCreate, "automation", automation.ID, map[string]interface{}{"name": automation.Name})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "automation created successfully", "automation": automation})
}

// UpdateAutomation godoc
// @Summary Update an automation
// @Tags automations
// @Accept json
// @Produce json
// @Param id path string true "Automation ID"
// @Param automation body domain.UpdateAutomationRequest true "Fields to change"
// @Success 200 {object} domain.Automation
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/automations/{id} [put]
func (h *AutomationHandler) UpdateAutomation(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAutomationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := mux.Vars(r)["id"]
	var automation *domain.Automation
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		automation, err = u.Automation().Update(ctx, u.Principal.CustomerID, id, &req)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionUpdate, "automation", automation.ID, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "automation updated successfully", "automation": automation})
}

// ToggleAutomation godoc
// @Summary Flip an automation's active flag
// @Tags automations
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} domain.Automation
// @Failure 404 {object} map[string]string
// @Router /api/automations/{id}/toggle [post]
func (h *AutomationHandler) ToggleAutomation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var automation *domain.Automation
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		var err error
		automation, err = u.Automation().Toggle(ctx, u.Principal.CustomerID, id)
		if err != nil {
			return err
		}
		u.Audit(domain.ActionStatusChange, "automation", automation.ID, map[string]interface{}{"is_active": automation.IsActive})
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	state := "deactivated"
	if automation.IsActive {
		state = "activated"
	}
	writeJSON(w, http.StatusOK, envelope{"message": "automation " + state + " successfully", "automation": automation})
}

// TestAutomation godoc
// @Summary Simulate an automation run
// @Description Reports the actions that would run. Nothing is executed.
// @Tags automations
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} domain.AutomationTestResult
// @Failure 404 {object} map[string]string
// @Router /api/automations/{id}/test [post]
func (h *AutomationHandler) TestAutomation(w http.ResponseWriter, r *http.Request) {
	automation, err := h.repos.Automation().Get(r.Context(), principal(r).CustomerID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := domain.AutomationTestResult{
		Success:         true,
		ExecutedActions: len(automation.Actions),
		Message:         fmt.Sprintf("automation %q executed in test mode", automation.Name),
	}
	writeJSON(w, http.StatusOK, envelope{"test_result": result})
}

// DeleteAutomation godoc
// @Summary Delete an automation
// @Tags automations
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/automations/{id} [delete]
func (h *AutomationHandler) DeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := h.committer.Run(r, func(ctx context.Context, u *Unit) error {
		if err := u.Automation().Delete(ctx, u.Principal.CustomerID, id); err != nil {
			return err
		}
		u.Audit(domain.ActionDelete, "automation", id, nil)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "automation deleted successfully"})
}
