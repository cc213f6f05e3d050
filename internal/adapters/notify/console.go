package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// Console implementa ports.Reporter.
type Console struct {
	out io.Writer
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Report imprime el estado del pool, los records y el journal reciente.
func (c *Console) Report(_ context.Context, r domain.Report) error {
	c.printPool(r.Pool)
	c.printLenders(r.Lenders)
	c.printBorrowers(r.Borrowers)
	c.printOperations(r.Operations)
	return nil
}

// printPool imprime reservas, suelos y parámetros.
func (c *Console) printPool(p domain.Pool) {
	fmt.Fprintf(c.out, "\n=== POOL %s ===  (created %s)\n", shortID(p.ID), p.CreatedAt.Format("2006-01-02 15:04"))

	table := tablewriter.NewWriter(c.out)
	table.Header("Reserve", "Asset", "Amount", "Floor", "Health")
	table.Append("main", string(p.Base.Asset()), money(p.Base.Amount()), money(p.MainFloor()), health(p.MainPoolHealthy()))
	table.Append("loan", string(p.Yield.Asset()), money(p.Yield.Amount()), money(p.LoanFloor()), health(p.LoanPoolHealthy()))
	table.Render()

	prm := p.Params
	fmt.Fprintf(c.out, "  fee %s%%  reward %s%%  start %s  repaid %s\n",
		prm.Fee, prm.Reward, money(p.StartAmount), money(p.CumulativeRepaid))
	fmt.Fprintf(c.out, "  lend ratio (%s, %s)  borrow ratio (%s, %s)  tiers L1 %d..%d / L2 >%d\n",
		prm.MinRatioLend, prm.MaxRatioLend, prm.MinRatioBorrow, prm.MaxRatioBorrow,
		prm.TierLow, prm.TierHigh, prm.TierHigh)
}

func (c *Console) printLenders(recs []domain.LenderRecord) {
	fmt.Fprintf(c.out, "\n--- lenders (%d) ---\n", len(recs))
	if len(recs) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Record", "Done", "Tier", "Open", "Updated")
	for _, r := range recs {
		table.Append(shortID(r.ID), strconv.Itoa(r.CompletedCount), flags(r.Tier1, r.Tier2),
			yesNo(r.Open), r.UpdatedAt.Format("15:04:05"))
	}
	table.Render()
}

func (c *Console) printBorrowers(recs []domain.BorrowerRecord) {
	fmt.Fprintf(c.out, "\n--- borrowers (%d) ---\n", len(recs))
	if len(recs) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Record", "Done", "Tier", "Open", "Owed", "Updated")
	for _, r := range recs {
		table.Append(shortID(r.ID), strconv.Itoa(r.CompletedCount), flags(r.Tier1, r.Tier2),
			yesNo(r.Open), money(r.Owed), r.UpdatedAt.Format("15:04:05"))
	}
	table.Render()
}

func (c *Console) printOperations(ops []domain.Operation) {
	fmt.Fprintf(c.out, "\n--- last %d operations ---\n", len(ops))
	if len(ops) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("At", "Op", "Record", "Tier", "In", "Out", "Minted", "Burned", "Main", "Loan")
	for _, op := range ops {
		table.Append(
			op.At.Format("15:04:05"),
			string(op.Kind),
			shortID(op.RecordID),
			op.Tier.String(),
			money(op.AmountIn),
			money(op.AmountOut),
			money(op.Minted),
			money(op.Burned),
			money(op.BaseAfter),
			money(op.YieldAfter),
		)
	}
	table.Render()
	fmt.Fprintln(c.out, "  In/Out = activo recibido/entregado | Main/Loan = reservas tras la operación")
}

// PrintSimulation imprime el resumen de una simulación.
func (c *Console) PrintSimulation(s domain.SimulationSummary) {
	fmt.Fprintf(c.out, "\n=== SIMULATION — %d lenders, %d borrowers, %s ===\n",
		s.Lenders, s.Borrowers, s.Elapsed.Round(time.Millisecond))

	table := tablewriter.NewWriter(c.out)
	table.Header("Outcome", "Count", "Share")
	table.Append("ok", strconv.Itoa(s.Committed), share(s.Committed, s.Attempted))

	outcomes := make([]string, 0, len(s.Rejected))
	for o := range s.Rejected {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		table.Append(o, strconv.Itoa(s.Rejected[o]), share(s.Rejected[o], s.Attempted))
	}
	table.Render()
}

// --- helpers ---

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func health(ok bool) string {
	if ok {
		return "OK"
	}
	return "LOW"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func flags(tier1, tier2 bool) string {
	switch {
	case tier2:
		return domain.TierL2.String()
	case tier1:
		return domain.TierL1.String()
	default:
		return domain.TierNone.String()
	}
}

func share(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}

// shortID recorta un UUID a su primer bloque.
func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
