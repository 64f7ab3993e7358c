package api

import (
	"context"
	"net/http"

	"github.com/hackgods/medical-office-scheduling/internal/reminder"
)

type EmailTokenService interface {
	Issue(ctx context.Context, email string) error
	Redeem(ctx context.Context, token string) (string, error)
}

type ReminderRunner interface {
	RunNow(ctx context.Context) ([]reminder.RunReport, error)
}

// requestEmailTokenHandler always answers the same way for known and
// unknown addresses.
func requestEmailTokenHandler(svc EmailTokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EmailTokenRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := svc.Issue(r.Context(), req.Email); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "if the address is registered, a sign-in link was sent"})
	}
}

func redeemEmailTokenHandler(svc EmailTokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		session, err := svc.Redeem(r.Context(), req.Token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{Success: true, Message: "signed in", Token: session})
	}
}

func runRemindersHandler(runner ReminderRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := runner.RunNow(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if reports == nil {
			reports = []reminder.RunReport{}
		}
		writeJSON(w, http.StatusOK, ReminderRunResponse{Success: true, Message: "reminder run finished", Reports: reports})
	}
}
