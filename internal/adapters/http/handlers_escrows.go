package http

import (
	"net/http"

	"github.com/earnforge/payments-core/internal/application"
)

type fundTaskRequest struct {
	SponsorID     string  `json:"sponsor_id"`
	TaskID        string  `json:"task_id"`
	TotalSlots    int     `json:"total_slots"`
	AmountPerSlot float64 `json:"amount_per_slot"`
	PlatformFee   float64 `json:"platform_fee"`
}

func (h *Handler) fundTask(w http.ResponseWriter, r *http.Request) {
	var req fundTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "fund_task", err)
		return
	}
	sponsorID, err := parseUUIDField(req.SponsorID, "sponsor_id")
	if err != nil {
		writeValidationError(r.Context(), w, "fund_task", err)
		return
	}
	taskID, err := parseUUIDField(req.TaskID, "task_id")
	if err != nil {
		writeValidationError(r.Context(), w, "fund_task", err)
		return
	}
	escrow, err := h.service.FundTask(r.Context(), application.FundTaskInput{
		SponsorID:     sponsorID,
		TaskID:        taskID,
		TotalSlots:    req.TotalSlots,
		AmountPerSlot: req.AmountPerSlot,
		PlatformFee:   req.PlatformFee,
	})
	if err != nil {
		respondDomainError(r.Context(), w, "fund_task", err)
		return
	}
	writeSuccess(w, http.StatusCreated, escrow)
}

func (h *Handler) getEscrow(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "task_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_escrow", err)
		return
	}
	escrow, err := h.service.GetEscrow(r.Context(), taskID)
	if err != nil {
		respondDomainError(r.Context(), w, "get_escrow", err)
		return
	}
	writeSuccess(w, http.StatusOK, escrow)
}

type releaseSlotRequest struct {
	WorkerID string `json:"worker_id"`
}

func (h *Handler) releaseSlot(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "task_id")
	if err != nil {
		writeValidationError(r.Context(), w, "release_slot", err)
		return
	}
	var req releaseSlotRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "release_slot", err)
		return
	}
	workerID, err := parseUUIDField(req.WorkerID, "worker_id")
	if err != nil {
		writeValidationError(r.Context(), w, "release_slot", err)
		return
	}
	escrow, err := h.service.ReleaseSlot(r.Context(), taskID, workerID)
	if err != nil {
		respondDomainError(r.Context(), w, "release_slot", err)
		return
	}
	writeSuccess(w, http.StatusOK, escrow)
}

type refundEscrowRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) refundEscrow(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathUUID(r, "task_id")
	if err != nil {
		writeValidationError(r.Context(), w, "refund_escrow", err)
		return
	}
	var req refundEscrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "refund_escrow", err)
		return
	}
	escrow, err := h.service.RefundRemaining(r.Context(), taskID, req.Reason)
	if err != nil {
		respondDomainError(r.Context(), w, "refund_escrow", err)
		return
	}
	writeSuccess(w, http.StatusOK, escrow)
}
