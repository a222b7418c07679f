package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/user"
)

type authResponse struct {
	User  *user.User `json:"user"`
	Token string     `json:"token"`
}

type userResponse struct {
	User *user.User `json:"user"`
}

type leadResponse struct {
	Lead *lead.Lead `json:"lead"`
}

type leadsResponse struct {
	Leads []*lead.Lead `json:"leads"`
}

type statusRequest struct {
	Status lead.Status `json:"status"`
}

type creditsRequest struct {
	Action credit.Action `json:"action"`
	Amount int64         `json:"amount"`
}

// ──────────────────────────────────────────────────
// Auth
// ──────────────────────────────────────────────────

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in leadledger.AccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.ledger.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithToken(w, r, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in leadledger.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.ledger.Authenticate(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithToken(w, r, u)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, u *user.User) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse{User: UserFrom(r.Context())})
}

// ──────────────────────────────────────────────────
// Leads
// ──────────────────────────────────────────────────

func (s *Server) submitLead(w http.ResponseWriter, r *http.Request) {
	var in lead.Input
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ld, err := s.ledger.SubmitLead(r.Context(), UserFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leadResponse{Lead: ld})
}

func (s *Server) myLeads(w http.ResponseWriter, r *http.Request) {
	s.listLeads(w, r, s.ledger.ListMyLeads)
}

func (s *Server) browseLeads(w http.ResponseWriter, r *http.Request) {
	s.listLeads(w, r, s.ledger.BrowseLeads)
}

func (s *Server) pendingLeads(w http.ResponseWriter, r *http.Request) {
	s.listLeads(w, r, s.ledger.ListPendingLeads)
}

type leadLister func(ctx context.Context, actor *user.User, opts lead.ListOpts) ([]*lead.Lead, error)

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request, list leadLister) {
	limit, offset, err := page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	leads, err := list(r.Context(), UserFrom(r.Context()), lead.ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leadsResponse{Leads: leads})
}

func (s *Server) viewLead(w http.ResponseWriter, r *http.Request) {
	leadID, ok := s.leadParam(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.ViewLead(r.Context(), UserFrom(r.Context()), leadID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ──────────────────────────────────────────────────
// Moderation
// ──────────────────────────────────────────────────

func (s *Server) approveLead(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, lead.StatusApproved)
}

func (s *Server) rejectLead(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, lead.StatusRejected)
}

func (s *Server) setLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.transition(w, r, req.Status)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, to lead.Status) {
	leadID, ok := s.leadParam(w, r)
	if !ok {
		return
	}
	ld, err := s.ledger.SetLeadStatus(r.Context(), UserFrom(r.Context()), leadID, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leadResponse{Lead: ld})
}

// ──────────────────────────────────────────────────
// Superadmin
// ──────────────────────────────────────────────────

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := user.ListOpts{Role: user.Role(r.URL.Query().Get("role")), Limit: limit, Offset: offset}
	users, err := s.ledger.ListUsers(r.Context(), UserFrom(r.Context()), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) createAdmin(w http.ResponseWriter, r *http.Request) {
	var in leadledger.AccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.ledger.CreateAdmin(r.Context(), UserFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u})
}

func (s *Server) adjustCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userParam(w, r)
	if !ok {
		return
	}
	var req creditsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.ledger.AdjustCredits(r.Context(), UserFrom(r.Context()), userID, req.Action, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u})
}

func (s *Server) creditTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := credit.ListOpts{Type: credit.Type(r.URL.Query().Get("type")), Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("userId"); raw != "" {
		if opts.UserID, err = id.ParseUserID(raw); err != nil {
			s.writeError(w, r, leadledger.ValidationError{Field: "userId", Message: "invalid user id"})
			return
		}
	}
	entries, err := s.ledger.ListCreditTransactions(r.Context(), UserFrom(r.Context()), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userParam(w, r)
	if !ok {
		return
	}
	rec, err := s.ledger.Reconcile(r.Context(), UserFrom(r.Context()), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reconciliation": rec,
		"drift":          rec.Drift(),
	})
}

// leadParam reports unparseable ids as not found since they cannot name a
// stored lead.
func (s *Server) leadParam(w http.ResponseWriter, r *http.Request) (id.LeadID, bool) {
	leadID, err := id.ParseLeadID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, leadledger.ErrLeadNotFound)
		return id.Nil, false
	}
	return leadID, true
}

func (s *Server) userParam(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, leadledger.ErrUserNotFound)
		return id.Nil, false
	}
	return userID, true
}
