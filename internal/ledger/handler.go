package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookledger/internal/catalog"
	"bookledger/internal/web"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for the /loans resource.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleIssue)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/return", h.handleReturn)
	return r
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := web.Decode(r, &req); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	loan, err := h.service.IssueBook(r.Context(), req)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusCreated, loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		ReturnDate Date   `json:"return_date"`
		Remarks    string `json:"remarks"`
	}
	if err := web.Decode(r, &req); err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	lateDays, err := h.service.ReturnBook(r.Context(), id, req.ReturnDate, req.Remarks)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]int{"late_days": lateDays})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		web.RespondError(w, http.StatusBadRequest, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		web.RespondError(w, statusFor(err), err)
		return
	}
	web.Respond(w, http.StatusOK, loan)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		loans []*Loan
		err   error
	)
	switch {
	case r.URL.Query().Get("borrower_id") != "":
		var borrowerID int64
		borrowerID, err = strconv.ParseInt(r.URL.Query().Get("borrower_id"), 10, 64)
		if err != nil {
			web.RespondError(w, http.StatusBadRequest, errors.New("invalid borrower ID"))
			return
		}
		loans, err = h.service.ListLoansForBorrower(r.Context(), borrowerID)
	case r.URL.Query().Get("open") == "true":
		loans, err = h.service.ListOpenLoans(r.Context())
	default:
		loans, err = h.service.ListLoans(r.Context())
	}
	if err != nil {
		web.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	web.Respond(w, http.StatusOK, loans)
}

func loanID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid loan ID")
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrLoanNotFound),
		errors.Is(err, ErrBorrowerNotFound),
		errors.Is(err, catalog.ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoCopiesAvailable), errors.Is(err, ErrAlreadyReturned):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
