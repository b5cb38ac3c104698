package directory

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookledger/internal/web"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// UserRoutes returns the router for the /users resource.
func (h *Handler) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegisterUser)
	r.Get("/", h.handleListUsers)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetUser)
		r.Put("/", h.handleUpdateUser)
		r.Delete("/", h.handleDeleteUser)
	})
	return r
}

// LibrarianRoutes returns the router for the /librarians resource.
func (h *Handler) LibrarianRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleAddLibrarian)
	r.Get("/", h.handleListLibrarians)
	r.Get("/search", h.handleSearchLibrarians)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetLibrarian)
		r.Put("/", h.handleUpdateLibrarian)
		r.Delete("/", h.handleDeleteLibrarian)
	})
	return r
}

// AuthRoutes returns the router for the /auth resource.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.Post("/forgot", h.handleForgotPassword)
	r.Post("/reset", h.handleResetPassword)
	return r
}

type registerRequest struct {
	User
	Password string `json:"password"`
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := web.Decode(r, &req); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.RegisterUser(r.Context(), req.User, req.Password)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusCreated, created)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		web.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	web.Respond(w, http.StatusOK, users)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	var user User
	if err := web.Decode(r, &user); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.service.UpdateUser(r.Context(), id, user)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addLibrarianRequest struct {
	Librarian
	Password string `json:"password"`
}

func (h *Handler) handleAddLibrarian(w http.ResponseWriter, r *http.Request) {
	var req addLibrarianRequest
	if err := web.Decode(r, &req); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.AddLibrarian(r.Context(), req.Librarian, req.Password)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusCreated, created)
}

func (h *Handler) handleListLibrarians(w http.ResponseWriter, r *http.Request) {
	librarians, err := h.service.ListLibrarians(r.Context())
	if err != nil {
		web.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	web.Respond(w, http.StatusOK, librarians)
}

func (h *Handler) handleSearchLibrarians(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		web.RespondError(w, http.StatusBadRequest, errors.New("missing search query"))
		return
	}

	librarians, err := h.service.SearchLibrarians(r.Context(), keyword)
	if err != nil {
		web.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	web.Respond(w, http.StatusOK, librarians)
}

func (h *Handler) handleGetLibrarian(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	librarian, err := h.service.GetLibrarian(r.Context(), id)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, librarian)
}

func (h *Handler) handleUpdateLibrarian(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	var librarian Librarian
	if err := web.Decode(r, &librarian); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.service.UpdateLibrarian(r.Context(), id, librarian)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteLibrarian(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.DeleteLibrarian(r.Context(), id); err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := web.Decode(r, &req); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, user)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := web.Decode(r, &req); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.service.CreateResetToken(r.Context(), req.Username)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := web.Decode(r, &req); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid ID")
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrLibrarianNotFound), errors.Is(err, ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrTokenExpired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
