package catalog

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

// Routes returns the router for the /books resource.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleAddBook)
	r.Get("/", h.handleListBooks)
	r.Get("/search", h.handleSearch)
	r.Get("/isbn/{isbn}", h.handleGetBookByISBN)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetBook)
		r.Put("/", h.handleEditBook)
		r.Delete("/", h.handleDeleteBook)
	})
	return r
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var book Book
	if err := web.Decode(r, &book); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.AddBook(r.Context(), book)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusCreated, created)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		web.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	web.Respond(w, http.StatusOK, books)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		web.RespondError(w, http.StatusBadRequest, errors.New("missing search query"))
		return
	}

	books, err := h.service.Search(r.Context(), keyword)
	if err != nil {
		web.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	web.Respond(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, book)
}

func (h *Handler) handleGetBookByISBN(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.GetBookByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, book)
}

func (h *Handler) handleEditBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	var book Book
	if err := web.Decode(r, &book); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.service.EditBook(r.Context(), id, book)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bookID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid book ID")
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBookOnLoan):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCopyCount), errors.Is(err, ErrMissingField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
