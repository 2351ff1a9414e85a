package user

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autama/autama/backend/internal/handler/httperr"
	"github.com/autama/autama/backend/internal/middleware"
	"github.com/autama/autama/backend/internal/model/user"
	"github.com/autama/autama/backend/pkg/utils"
)

// Accounts signs users up and in.
type Accounts interface {
	Register(ctx context.Context, username, password string, staff bool) (user.User, error)
	Login(ctx context.Context, username, password string) (user.Token, error)
	List(ctx context.Context) ([]user.User, error)
}

// Handler serves the account API.
type Handler struct {
	accounts Accounts
}

// New 创建用户处理器
func New(accounts Accounts) *Handler {
	return &Handler{accounts: accounts}
}

// RegisterRoutes 注册用户相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireUser).Get("/users", h.handleListUsers)
	r.Post("/users", h.handleSignUp)
	r.Post("/login", h.handleLogin)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if users == nil {
		users = []user.User{}
	}
	utils.RespondJSON(w, http.StatusOK, users)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.accounts.Register(r.Context(), payload.Username, payload.Password, false)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.accounts.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, token)
}
