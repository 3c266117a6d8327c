package http

import (
	"net/http"

	"github.com/earnforge/payments-core/internal/application"
)

type applyReferralRequest struct {
	ReferrerID     string `json:"referrer_id"`
	ReferredUserID string `json:"referred_user_id"`
	ReferralCode   string `json:"referral_code"`
}

func (h *Handler) applyReferral(w http.ResponseWriter, r *http.Request) {
	var req applyReferralRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "apply_referral", err)
		return
	}
	referrerID, err := parseUUIDField(req.ReferrerID, "referrer_id")
	if err != nil {
		writeValidationError(r.Context(), w, "apply_referral", err)
		return
	}
	referredID, err := parseUUIDField(req.ReferredUserID, "referred_user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "apply_referral", err)
		return
	}
	referral, err := h.service.ApplyReferralCode(r.Context(), application.ApplyReferralInput{
		ReferrerID:     referrerID,
		ReferredUserID: referredID,
		ReferralCode:   req.ReferralCode,
	})
	if err != nil {
		respondDomainError(r.Context(), w, "apply_referral", err)
		return
	}
	writeSuccess(w, http.StatusCreated, referral)
}

func (h *Handler) referralStats(w http.ResponseWriter, r *http.Request) {
	referrerID, err := pathUUID(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "referral_stats", err)
		return
	}
	stats, err := h.service.ReferralStatsFor(r.Context(), referrerID)
	if err != nil {
		respondDomainError(r.Context(), w, "referral_stats", err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}
