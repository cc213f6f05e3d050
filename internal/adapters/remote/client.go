package remote

// client.go — cliente HTTP de la API de lendpool.
//
// Implementa la misma interfaz que el engine para la simulación, así que
// `lendpool -simulate -remote URL` genera carga contra un servidor en marcha.
// Los errores de la API se reconstruyen como errores de dominio a partir del campo
// outcome, de modo que errors.Is funciona igual en local que en remoto.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerSec = 5
	defaultBurst      = 10

	maxRetries     = 3
	baseRetryWait  = 250 * time.Millisecond
	requestTimeout = 10 * time.Second
)

// Client habla con un `lendpool -serve` remoto.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter

	mu   sync.Mutex
	last domain.Pool
}

// NewClient crea un Client contra baseURL. El limiter debería ir al ritmo del
// servidor para no gastar reintentos en 429.
func NewClient(baseURL string, ratePerSec float64, burst int) *Client {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		base:    strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// --- wire types ---

type bucketBody struct {
	Asset  domain.Asset    `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type amountBody struct {
	Ticket domain.Ticket   `json:"ticket"`
	Amount decimal.Decimal `json:"amount"`
}

type positionBody struct {
	ID             string           `json:"id"`
	Role           domain.Role      `json:"role"`
	CompletedCount int              `json:"completed_count"`
	Tier1          bool             `json:"tier1"`
	Tier2          bool             `json:"tier2"`
	Open           bool             `json:"open"`
	Owed           *decimal.Decimal `json:"owed"`
}

type reserveBody struct {
	Asset  domain.Asset    `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type poolBody struct {
	ID               string          `json:"id"`
	AuthorityID      string          `json:"authority_id"`
	Main             reserveBody     `json:"main_pool"`
	Loan             reserveBody     `json:"loan_pool"`
	StartAmount      decimal.Decimal `json:"start_amount"`
	CumulativeRepaid decimal.Decimal `json:"cumulative_repaid"`
	Fee              decimal.Decimal `json:"fee"`
	Reward           decimal.Decimal `json:"reward"`
	Params           struct {
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
	} `json:"params"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b poolBody) toDomain() domain.Pool {
	prm := b.Params
	return domain.Pool{
		ID:               b.ID,
		AuthorityID:      b.AuthorityID,
		Base:             domain.NewReserve(b.Main.Asset, b.Main.Amount, ""),
		Yield:            domain.NewReserve(b.Loan.Asset, b.Loan.Amount, b.AuthorityID),
		StartAmount:      b.StartAmount,
		CumulativeRepaid: b.CumulativeRepaid,
		Params: domain.PoolParams{
			Fee:              b.Fee,
			Reward:           b.Reward,
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
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type errorBody struct {
	Error     string            `json:"error"`
	Outcome   string            `json:"outcome"`
	Bound     domain.RatioBound `json:"bound"`
	Ratio     decimal.Decimal   `json:"ratio"`
	MinAmount decimal.Decimal   `json:"min_amount"`
	MaxAmount decimal.Decimal   `json:"max_amount"`
}

var outcomeErrors = map[string]error{
	"already_open":         domain.ErrAlreadyOpen,
	"not_open":             domain.ErrNotOpen,
	"pool_unhealthy":       domain.ErrPoolUnhealthy,
	"insufficient_reserve": domain.ErrInsufficientReserve,
	"invalid_input":        domain.ErrInvalidAmount,
	"wrong_asset":          domain.ErrWrongAsset,
	"unauthorized":         domain.ErrUnauthorized,
	"wrong_role":           domain.ErrWrongRole,
	"not_found":            domain.ErrRecordNotFound,
	"configuration":        domain.ErrConfiguration,
	"timeout":              context.DeadlineExceeded,
	"canceled":             context.Canceled,
}

// domainError reconstruye el error que devolvió el engine remoto.
func (e errorBody) domainError(status int) error {
	if e.Outcome == "ratio_out_of_bounds" {
		return &domain.RatioError{Bound: e.Bound, Ratio: e.Ratio, MinAmount: e.MinAmount, MaxAmount: e.MaxAmount}
	}
	if sentinel, ok := outcomeErrors[e.Outcome]; ok {
		return fmt.Errorf("remote: %w (%s)", sentinel, e.Error)
	}
	return fmt.Errorf("remote: status %d: %s", status, e.Error)
}

// --- API ---

// Pool lee el estado actual del pool remoto.
func (c *Client) Pool(ctx context.Context) (domain.Pool, error) {
	var body poolBody
	if err := c.get(ctx, "/pool", &body); err != nil {
		return domain.Pool{}, fmt.Errorf("remote.Pool: %w", err)
	}
	p := body.toDomain()
	c.mu.Lock()
	c.last = p
	c.mu.Unlock()
	return p, nil
}

// Snapshot es Pool sin contexto. Si la petición falla devuelve el último estado
// conocido.
func (c *Client) Snapshot() domain.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	p, err := c.Pool(ctx)
	if err != nil {
		slog.Warn("remote: snapshot failed, using last known pool", "err", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.last
	}
	return p
}

func (c *Client) Register(ctx context.Context) (domain.Ticket, error) {
	var t domain.Ticket
	if err := c.post(ctx, "/lenders", nil, &t); err != nil {
		return domain.Ticket{}, fmt.Errorf("remote.Register: %w", err)
	}
	return t, nil
}

func (c *Client) RegisterBorrower(ctx context.Context) (domain.Ticket, error) {
	var t domain.Ticket
	if err := c.post(ctx, "/borrowers", nil, &t); err != nil {
		return domain.Ticket{}, fmt.Errorf("remote.RegisterBorrower: %w", err)
	}
	return t, nil
}

func (c *Client) Lend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	if err := tokens.Expect(domain.AssetBase); err != nil {
		return domain.Bucket{}, fmt.Errorf("remote.Lend: %w", err)
	}
	return c.bucketOp(ctx, "/lend", tokens.Amount, t)
}

func (c *Client) WithdrawLend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	if err := tokens.Expect(domain.AssetYield); err != nil {
		return domain.Bucket{}, fmt.Errorf("remote.WithdrawLend: %w", err)
	}
	return c.bucketOp(ctx, "/withdraw", tokens.Amount, t)
}

func (c *Client) Borrow(ctx context.Context, amount decimal.Decimal, t domain.Ticket) (domain.Bucket, error) {
	return c.bucketOp(ctx, "/borrow", amount, t)
}

func (c *Client) Repay(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	if err := tokens.Expect(domain.AssetBase); err != nil {
		return domain.Bucket{}, fmt.Errorf("remote.Repay: %w", err)
	}
	return c.bucketOp(ctx, "/repay", tokens.Amount, t)
}

func (c *Client) Lender(ctx context.Context, t domain.Ticket) (domain.LenderRecord, error) {
	pos, err := c.position(ctx, t)
	if err != nil {
		return domain.LenderRecord{}, err
	}
	return domain.LenderRecord{
		ID: pos.ID, CompletedCount: pos.CompletedCount,
		Tier1: pos.Tier1, Tier2: pos.Tier2, Open: pos.Open,
	}, nil
}

func (c *Client) Borrower(ctx context.Context, t domain.Ticket) (domain.BorrowerRecord, error) {
	pos, err := c.position(ctx, t)
	if err != nil {
		return domain.BorrowerRecord{}, err
	}
	rec := domain.BorrowerRecord{
		ID: pos.ID, CompletedCount: pos.CompletedCount, Owed: decimal.Zero,
		Tier1: pos.Tier1, Tier2: pos.Tier2, Open: pos.Open,
	}
	if pos.Owed != nil {
		rec.Owed = *pos.Owed
	}
	return rec, nil
}

func (c *Client) position(ctx context.Context, t domain.Ticket) (positionBody, error) {
	var pos positionBody
	if err := c.post(ctx, "/position", map[string]any{"ticket": t}, &pos); err != nil {
		return positionBody{}, fmt.Errorf("remote.position: %w", err)
	}
	return pos, nil
}

func (c *Client) bucketOp(ctx context.Context, path string, amount decimal.Decimal, t domain.Ticket) (domain.Bucket, error) {
	var out bucketBody
	if err := c.post(ctx, path, amountBody{Ticket: t, Amount: amount}, &out); err != nil {
		return domain.Bucket{}, fmt.Errorf("remote %s: %w", path, err)
	}
	return domain.NewBucket(out.Asset, out.Amount), nil
}

// --- transporte ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, true, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = b
	}
	return c.doWithRetry(ctx, false, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

// doWithRetry ejecuta la petición con backoff exponencial. Un 429 se reintenta
// siempre: el limiter del servidor corta antes del handler. Errores de red y 5xx
// solo se reintentan si la petición es idempotente, porque un POST pudo haberse
// aplicado.
func (c *Client) doWithRetry(ctx context.Context, idempotent bool, build func() (*http.Request, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		req, err := build()
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if !idempotent || attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("remote: rate limited by server", "attempt", attempt+1, "path", req.URL.Path)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 && idempotent && attempt < maxRetries {
			resp.Body.Close()
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return decodeError(resp)
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func decodeError(resp *http.Response) error {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		if resp.StatusCode == http.StatusGatewayTimeout {
			// el middleware de timeout del servidor responde sin cuerpo JSON
			return fmt.Errorf("remote: %w", context.DeadlineExceeded)
		}
		return fmt.Errorf("remote: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return body.domainError(resp.StatusCode)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
