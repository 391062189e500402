package http

import (
	"net/http"

	"estate-market-backend/internal/domain"
	"estate-market-backend/internal/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	svc service.TransactionService
}

type openRequest struct {
	PropertyID      string                  `json:"propertyId"`
	Type            domain.TransactionType  `json:"type"`
	Amount          decimal.Decimal         `json:"amount"`
	ContractDetails *domain.ContractDetails `json:"contractDetails,omitempty"`
}

type completeRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

type transactionResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
}

func (h *TransactionHandler) Open(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req openRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Open(r.Context(), p, service.OpenInput{
		PropertyID: req.PropertyID,
		Type:       req.Type,
		Amount:     req.Amount,
		Contract:   req.ContractDetails,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *TransactionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := h.svc.Complete(r.Context(), p, mux.Vars(r)["id"], req.PaymentMethod)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionResponse{Transaction: tx})
}

func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Cancel(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	txs, err := h.svc.List(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(txs))
}

func (h *TransactionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(txs))
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	events, err := h.svc.History(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(events))
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
