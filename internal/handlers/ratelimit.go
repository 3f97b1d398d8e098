package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type rateLimitRequest struct {
	LimiterType string `json:"limiterType"`
	Identifier  string `json:"identifier"`
}

type rateLimitAllowed struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

type rateLimitDenied struct {
	Allowed    bool  `json:"allowed"`
	RetryAfter int64 `json:"retryAfter"`
}

// RateLimit counts one hit for (limiterType, identifier) and reports the verdict.
//
// Behavior:
//   - 200 {allowed, limit, remaining, reset} where reset is epoch millis.
//   - 429 {allowed: false, retryAfter} in seconds, mirrored in Retry-After.
//   - 400 on a malformed body or unknown limiter type.
//
// Example:
//
//	POST /rate-limit {"limiterType": "auth", "identifier": "student@campus.edu"}
func (h *Handlers) RateLimit(w http.ResponseWriter, r *http.Request) {
	var req rateLimitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	class, ok := h.appCtx.Limiter.ParseClass(req.LimiterType)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown limiter type", Field: "limiterType"})
		return
	}

	d, err := h.appCtx.Limiter.Allow(r.Context(), class, req.Identifier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !d.Allowed {
		secs := d.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeJSON(w, http.StatusTooManyRequests, rateLimitDenied{Allowed: false, RetryAfter: secs})
		return
	}
	writeJSON(w, http.StatusOK, rateLimitAllowed{
		Allowed:   true,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		Reset:     d.ResetAtEpochMs(),
	})
}
