package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errEmptyBody   = errors.New("request body is empty")
)

// Los importes viajan como strings JSON ("300.00"): decimal.Decimal los serializa así.

type amountRequest struct {
	Ticket domain.Ticket   `json:"ticket"`
	Amount decimal.Decimal `json:"amount"`
}

type positionRequest struct {
	Ticket domain.Ticket `json:"ticket"`
}

type bucketResponse struct {
	Asset  domain.Asset    `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type reserveView struct {
	Asset   domain.Asset    `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Floor   decimal.Decimal `json:"floor"`
	Healthy bool            `json:"healthy"`
}

type paramsView struct {
	BonusFeeL1       decimal.Decimal `json:"bonus_fee_l1"`
	BonusFeeL2       decimal.Decimal `json:"bonus_fee_l2"`
	ExtraRewardL1    decimal.Decimal `json:"extra_reward_l1"`
	ExtraRewardL2    decimal.Decimal `json:"extra_reward_l2"`
	MinRatioLend     decimal.Decimal `json:"min_ratio_lend"`
	MaxRatioLend     decimal.Decimal `json:"max_ratio_lend"`
	MinRatioBorrow   decimal.Decimal `json:"min_ratio_borrow"`
	MaxRatioBorrow   decimal.Decimal `json:"max_ratio_borrow"`
	LoanPoolLowLimit decimal.Decimal `json:"loan_pool_low_limit"`
	MainPoolLowLimit decimal.Decimal `json:"main_pool_low_limit"`
	TierLow          int             `json:"tier_low"`
	TierHigh         int             `json:"tier_high"`
}

type poolResponse struct {
	ID               string          `json:"id"`
	AuthorityID      string          `json:"authority_id"`
	Main             reserveView     `json:"main_pool"`
	Loan             reserveView     `json:"loan_pool"`
	StartAmount      decimal.Decimal `json:"start_amount"`
	CumulativeRepaid decimal.Decimal `json:"cumulative_repaid"`
	Fee              decimal.Decimal `json:"fee"`
	Reward           decimal.Decimal `json:"reward"`
	Params           paramsView      `json:"params"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type positionResponse struct {
	ID             string           `json:"id"`
	Role           domain.Role      `json:"role"`
	CompletedCount int              `json:"completed_count"`
	Tier1          bool             `json:"tier1"`
	Tier2          bool             `json:"tier2"`
	Open           bool             `json:"open"`
	Owed           *decimal.Decimal `json:"owed,omitempty"`
}

func (s *Server) getPool(w http.ResponseWriter, _ *http.Request) {
	p := s.pool.Snapshot()
	prm := p.Params
	writeJSON(w, http.StatusOK, poolResponse{
		ID:          p.ID,
		AuthorityID: p.AuthorityID,
		Main: reserveView{
			Asset: p.Base.Asset(), Amount: p.Base.Amount(),
			Floor: p.MainFloor(), Healthy: p.MainPoolHealthy(),
		},
		Loan: reserveView{
			Asset: p.Yield.Asset(), Amount: p.Yield.Amount(),
			Floor: p.LoanFloor(), Healthy: p.LoanPoolHealthy(),
		},
		StartAmount:      p.StartAmount,
		CumulativeRepaid: p.CumulativeRepaid,
		Fee:              prm.Fee,
		Reward:           prm.Reward,
		Params: paramsView{
			BonusFeeL1:       prm.BonusFeeL1,
			BonusFeeL2:       prm.BonusFeeL2,
			ExtraRewardL1:    prm.ExtraRewardL1,
			ExtraRewardL2:    prm.ExtraRewardL2,
			MinRatioLend:     prm.MinRatioLend,
			MaxRatioLend:     prm.MaxRatioLend,
			MinRatioBorrow:   prm.MinRatioBorrow,
			MaxRatioBorrow:   prm.MaxRatioBorrow,
			LoanPoolLowLimit: prm.LoanPoolLowLimit,
			MainPoolLowLimit: prm.MainPoolLowLimit,
			TierLow:          prm.TierLow,
			TierHigh:         prm.TierHigh,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
}

func (s *Server) registerLender(w http.ResponseWriter, r *http.Request) {
	t, err := s.pool.Register(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) registerBorrower(w http.ResponseWriter, r *http.Request) {
	t, err := s.pool.RegisterBorrower(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	switch req.Ticket.Role {
	case domain.RoleBorrower:
		rec, err := s.pool.Borrower(r.Context(), req.Ticket)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		owed := rec.Owed
		writeJSON(w, http.StatusOK, positionResponse{
			ID: rec.ID, Role: domain.RoleBorrower, CompletedCount: rec.CompletedCount,
			Tier1: rec.Tier1, Tier2: rec.Tier2, Open: rec.Open, Owed: &owed,
		})
	default:
		rec, err := s.pool.Lender(r.Context(), req.Ticket)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, positionResponse{
			ID: rec.ID, Role: domain.RoleLender, CompletedCount: rec.CompletedCount,
			Tier1: rec.Tier1, Tier2: rec.Tier2, Open: rec.Open,
		})
	}
}

func (s *Server) lend(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.pool.Lend(r.Context(), domain.NewBucket(domain.AssetBase, req.Amount), req.Ticket)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bucketResponse(out))
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.pool.WithdrawLend(r.Context(), domain.NewBucket(domain.AssetYield, req.Amount), req.Ticket)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bucketResponse(out))
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.pool.Borrow(r.Context(), req.Amount, req.Ticket)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bucketResponse(out))
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	change, err := s.pool.Repay(r.Context(), domain.NewBucket(domain.AssetBase, req.Amount), req.Ticket)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bucketResponse(change))
}

// --- encoding ---

func decodeRequest(r *http.Request, v any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError traduce los errores del engine a códigos HTTP. El campo outcome
// es la misma etiqueta que usan logs y métricas; los clientes lo usan para
// reconstruir el error de dominio.
func writeDomainError(w http.ResponseWriter, err error) {
	body := map[string]any{
		"error":   err.Error(),
		"outcome": domain.Outcome(err),
	}
	var ratioErr *domain.RatioError
	if errors.As(err, &ratioErr) {
		body["bound"] = ratioErr.Bound
		body["ratio"] = ratioErr.Ratio
		body["min_amount"] = ratioErr.MinAmount
		body["max_amount"] = ratioErr.MaxAmount
	}
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrWrongAsset):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrWrongRole):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyOpen),
		errors.Is(err, domain.ErrNotOpen):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRatioOutOfBounds),
		errors.Is(err, domain.ErrPoolUnhealthy),
		errors.Is(err, domain.ErrInsufficientReserve):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
