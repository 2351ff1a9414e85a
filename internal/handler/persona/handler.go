package persona

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autama/autama/backend/internal/handler/httperr"
	"github.com/autama/autama/backend/internal/middleware"
	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/pkg/utils"
)

// Producer registers and mass-produces Autamas.
type Producer interface {
	Register(ctx context.Context, name string, traits []string, creator string) (persona.Persona, error)
	MassProduce(ctx context.Context, amount int, creator string) ([]persona.Persona, error)
}

// Handler serves the Autama profile API.
type Handler struct {
	personas      persona.Store
	producer      Producer
	defaultAmount int
}

// New 创建persona处理器
func New(personas persona.Store, producer Producer, defaultAmount int) *Handler {
	if defaultAmount < 1 {
		defaultAmount = 2
	}
	return &Handler{
		personas:      personas,
		producer:      producer,
		defaultAmount: defaultAmount,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ais", h.handleListPersonas)
	r.Get("/ais/{id}", h.handleGetPersona)
	r.With(middleware.RequireUser).Post("/ais", h.handleRegister)
	r.With(middleware.RequireStaff).Post("/admin/massproduce", h.handleMassProduce)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := h.personas.List(r.Context())
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if personas == nil {
		personas = []persona.Persona{}
	}
	utils.RespondJSON(w, http.StatusOK, personas)
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := h.personas.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name   string   `json:"name"`
		Traits []string `json:"traits"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, _ := middleware.UserFrom(r.Context())
	p, err := h.producer.Register(r.Context(), payload.Name, payload.Traits, u.Username)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleMassProduce(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount *int `json:"amount"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	amount := h.defaultAmount
	if payload.Amount != nil {
		amount = *payload.Amount
	}

	u, _ := middleware.UserFrom(r.Context())
	created, err := h.producer.MassProduce(r.Context(), amount, u.Username)
	if created == nil {
		created = []persona.Persona{}
	}
	if err != nil {
		utils.RespondJSON(w, httperr.Status(err), map[string]any{
			"error":   err.Error(),
			"created": created,
		})
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"message": "Mass-production completed.",
		"created": created,
	})
}
