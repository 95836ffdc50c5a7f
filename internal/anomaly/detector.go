package anomaly

import (
	"context"
	"sync"
	"time"

	"mizan.org/internal/books"
	"mizan.org/internal/obs"
)

// Domain names one of the four monitored financial streams.
type Domain string

const (
	DomainRevenue Domain = "revenue"
	DomainExpense Domain = "expense"
	DomainInvoice Domain = "invoice"
	DomainTax     Domain = "tax"
)

// Result describes one evaluated entry. Results are advisory and ephemeral;
// nothing is persisted and a positive result never blocks a write.
type Result struct {
	Domain    Domain    `json:"domain"`
	Date      time.Time `json:"date"`
	Value     float64   `json:"observed_value"`
	IsAnomaly bool      `json:"is_anomaly"`
	ZScore    float64   `json:"z_score"`
	Mean      float64   `json:"baseline_mean"`
	StdDev    float64   `json:"baseline_std_dev"`
	IsExtreme bool      `json:"is_extreme"`

	// domain-specific context for the human reading the warning
	Category   string  `json:"category,omitempty"`
	ClientName string  `json:"client_name,omitempty"`
	Income     float64 `json:"income,omitempty"`
	Expenses   float64 `json:"expenses,omitempty"`
}

// Summary is the union of all four domain detectors.
type Summary struct {
	Revenue        []Result `json:"revenue_anomalies"`
	Expense        []Result `json:"expense_anomalies"`
	Invoice        []Result `json:"invoice_anomalies"`
	Tax            []Result `json:"tax_anomalies"`
	TotalAnomalies int      `json:"total_anomalies"`
}

// Thresholds holds the per-domain z-score cutoffs. They currently share a
// default of 2.5 but are deliberately independent values.
type Thresholds struct {
	Revenue float64
	Expense float64
	Invoice float64
	Tax     float64
}

// Config tunes the detector. The two extreme multipliers belong to different
// call sites (newest-vs-history vs by-ID re-check) and are kept separate;
// whether they should converge is a product question, not a code one.
type Config struct {
	Thresholds Thresholds

	// BootstrapFloor flags a business's first-ever revenue entry when no
	// baseline exists yet.
	BootstrapFloor float64

	// ExtremeMultiplier applies in newest-vs-history mode.
	ExtremeMultiplier float64

	// SingleExtremeMultiplier applies when re-checking one record by ID.
	SingleExtremeMultiplier float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			Revenue: 2.5,
			Expense: 2.5,
			Invoice: 2.5,
			Tax:     2.5,
		},
		BootstrapFloor:          1000,
		ExtremeMultiplier:       5,
		SingleExtremeMultiplier: 7,
	}
}

// bootstrapZScore is the synthetic score attached when the floor rule fires
// on a first-ever entry; there is no baseline to compute a real one.
const bootstrapZScore = 2.0

// Detector flags statistically unusual entries against a business's own
// history. It is read-only: load failures degrade to "no anomaly" and are
// logged, never propagated to the caller's write path.
type Detector struct {
	src books.Service
	cfg Config
}

// New creates a detector over the given record source.
func New(src books.Service, cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Thresholds.Revenue <= 0 {
		cfg.Thresholds.Revenue = def.Thresholds.Revenue
	}
	if cfg.Thresholds.Expense <= 0 {
		cfg.Thresholds.Expense = def.Thresholds.Expense
	}
	if cfg.Thresholds.Invoice <= 0 {
		cfg.Thresholds.Invoice = def.Thresholds.Invoice
	}
	if cfg.Thresholds.Tax <= 0 {
		cfg.Thresholds.Tax = def.Thresholds.Tax
	}
	if cfg.BootstrapFloor <= 0 {
		cfg.BootstrapFloor = def.BootstrapFloor
	}
	if cfg.ExtremeMultiplier <= 0 {
		cfg.ExtremeMultiplier = def.ExtremeMultiplier
	}
	if cfg.SingleExtremeMultiplier <= 0 {
		cfg.SingleExtremeMultiplier = def.SingleExtremeMultiplier
	}
	return &Detector{src: src, cfg: cfg}
}

// Revenue evaluates the newest daily revenue record against the business's
// full history (newest-vs-history mode). The date range parameters bound
// nothing here: the entire history forms the baseline.
func (d *Detector) Revenue(ctx context.Context, business string, start, end time.Time) []Result {
	recs, err := d.src.ListDailyRevenues(ctx, business)
	if err != nil {
		d.degrade(DomainRevenue, business, err)
		return nil
	}
	if len(recs) == 0 {
		return d.observed(DomainRevenue, nil)
	}

	newest := books.Recompute(recs[0])
	value := newest.Summary.TotalRevenue

	baseline := recs[1:]
	if len(baseline) == 0 {
		// bootstrap: no history yet, only the absolute floor can flag
		if value > d.cfg.BootstrapFloor {
			return d.observed(DomainRevenue, []Result{{
				Domain:    DomainRevenue,
				Date:      newest.Date,
				Value:     value,
				IsAnomaly: true,
				ZScore:    bootstrapZScore,
				IsExtreme: true,
			}})
		}
		return d.observed(DomainRevenue, nil)
	}

	totals := make([]float64, len(baseline))
	for i, rec := range baseline {
		totals[i] = books.Recompute(rec).Summary.TotalRevenue
	}
	mean, stdDev := Stats(totals)
	z := ZScore(value, mean, stdDev)
	isExtreme := value > mean*d.cfg.ExtremeMultiplier

	if z > d.cfg.Thresholds.Revenue || isExtreme {
		return d.observed(DomainRevenue, []Result{{
			Domain:    DomainRevenue,
			Date:      newest.Date,
			Value:     value,
			IsAnomaly: true,
			ZScore:    z,
			Mean:      mean,
			StdDev:    stdDev,
			IsExtreme: isExtreme,
		}})
	}
	return d.observed(DomainRevenue, nil)
}

// Expense evaluates every fixed-expense record in the window against all the
// other records of the same window (any-entry-vs-rest mode).
func (d *Detector) Expense(ctx context.Context, business string, start, end time.Time) []Result {
	expenses, err := d.src.ExpensesInRange(ctx, business, start, end)
	if err != nil {
		d.degrade(DomainExpense, business, err)
		return nil
	}

	values := make([]float64, len(expenses))
	for i, e := range expenses {
		values[i] = e.Amount
	}

	var results []Result
	for i, e := range expenses {
		mean, stdDev := Stats(excluding(values, i))
		z := ZScore(e.Amount, mean, stdDev)
		if z > d.cfg.Thresholds.Expense {
			results = append(results, Result{
				Domain:    DomainExpense,
				Date:      e.Date,
				Value:     e.Amount,
				IsAnomaly: true,
				ZScore:    z,
				Mean:      mean,
				StdDev:    stdDev,
				Category:  e.Category,
			})
		}
	}
	return d.observed(DomainExpense, results)
}

// Invoice evaluates invoice totals in the window, any-entry-vs-rest.
func (d *Detector) Invoice(ctx context.Context, business string, start, end time.Time) []Result {
	invoices, err := d.src.InvoicesInRange(ctx, business, start, end)
	if err != nil {
		d.degrade(DomainInvoice, business, err)
		return nil
	}

	values := make([]float64, len(invoices))
	for i, inv := range invoices {
		values[i] = inv.Total
	}

	var results []Result
	for i, inv := range invoices {
		mean, stdDev := Stats(excluding(values, i))
		z := ZScore(inv.Total, mean, stdDev)
		if z > d.cfg.Thresholds.Invoice {
			results = append(results, Result{
				Domain:     DomainInvoice,
				Date:       inv.Date,
				Value:      inv.Total,
				IsAnomaly:  true,
				ZScore:     z,
				Mean:       mean,
				StdDev:     stdDev,
				ClientName: inv.ClientName,
			})
		}
	}
	return d.observed(DomainInvoice, results)
}

// Tax evaluates calculated tax amounts in the window, any-entry-vs-rest.
func (d *Detector) Tax(ctx context.Context, business string, start, end time.Time) []Result {
	reports, err := d.src.TaxReportsInRange(ctx, business, start, end)
	if err != nil {
		d.degrade(DomainTax, business, err)
		return nil
	}

	values := make([]float64, len(reports))
	for i, r := range reports {
		values[i] = r.CalculatedTax
	}

	var results []Result
	for i, r := range reports {
		mean, stdDev := Stats(excluding(values, i))
		z := ZScore(r.CalculatedTax, mean, stdDev)
		if z > d.cfg.Thresholds.Tax {
			results = append(results, Result{
				Domain:    DomainTax,
				Date:      r.Date,
				Value:     r.CalculatedTax,
				IsAnomaly: true,
				ZScore:    z,
				Mean:      mean,
				StdDev:    stdDev,
				Income:    r.Income,
				Expenses:  r.Expenses,
			})
		}
	}
	return d.observed(DomainTax, results)
}

// SingleRevenue re-checks one daily revenue record by identity against all
// the other records of its business. This mode uses the 7x extreme
// multiplier. The boolean reports whether a result was produced at all.
func (d *Detector) SingleRevenue(ctx context.Context, recordID string) (Result, bool) {
	rec, err := d.src.GetDailyRevenue(ctx, recordID)
	if err != nil {
		d.degrade(DomainRevenue, recordID, err)
		return Result{}, false
	}
	rec = books.Recompute(rec)
	value := rec.Summary.TotalRevenue

	all, err := d.src.ListDailyRevenues(ctx, rec.Business)
	if err != nil {
		d.degrade(DomainRevenue, rec.Business, err)
		return Result{}, false
	}

	var totals []float64
	for _, other := range all {
		if other.ID == rec.ID {
			continue
		}
		totals = append(totals, books.Recompute(other).Summary.TotalRevenue)
	}

	if len(totals) == 0 {
		// same bootstrap rule as a first-ever entry
		if value > d.cfg.BootstrapFloor {
			res := Result{
				Domain:    DomainRevenue,
				Date:      rec.Date,
				Value:     value,
				IsAnomaly: true,
				ZScore:    bootstrapZScore,
				IsExtreme: true,
			}
			d.observed(DomainRevenue, []Result{res})
			return res, true
		}
		d.observed(DomainRevenue, nil)
		return Result{Domain: DomainRevenue, Date: rec.Date, Value: value}, true
	}

	mean, stdDev := Stats(totals)
	z := ZScore(value, mean, stdDev)
	isExtreme := value > mean*d.cfg.SingleExtremeMultiplier

	res := Result{
		Domain:    DomainRevenue,
		Date:      rec.Date,
		Value:     value,
		IsAnomaly: z > d.cfg.Thresholds.Revenue || isExtreme,
		ZScore:    z,
		Mean:      mean,
		StdDev:    stdDev,
		IsExtreme: isExtreme,
	}
	if res.IsAnomaly {
		d.observed(DomainRevenue, []Result{res})
	} else {
		d.observed(DomainRevenue, nil)
	}
	return res, true
}

// All runs the four domain detectors concurrently and returns their union.
// The domains share no mutable state, so ordering is irrelevant.
func (d *Detector) All(ctx context.Context, business string, start, end time.Time) Summary {
	var (
		wg      sync.WaitGroup
		summary Summary
	)

	run := func(dst *[]Result, f func(context.Context, string, time.Time, time.Time) []Result) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			*dst = f(ctx, business, start, end)
		}()
	}

	run(&summary.Revenue, d.Revenue)
	run(&summary.Expense, d.Expense)
	run(&summary.Invoice, d.Invoice)
	run(&summary.Tax, d.Tax)
	wg.Wait()

	summary.TotalAnomalies = len(summary.Revenue) + len(summary.Expense) +
		len(summary.Invoice) + len(summary.Tax)
	return summary
}

// ByDomain dispatches a single-domain detection.
func (d *Detector) ByDomain(ctx context.Context, domain Domain, business string, start, end time.Time) ([]Result, bool) {
	switch domain {
	case DomainRevenue:
		return d.Revenue(ctx, business, start, end), true
	case DomainExpense:
		return d.Expense(ctx, business, start, end), true
	case DomainInvoice:
		return d.Invoice(ctx, business, start, end), true
	case DomainTax:
		return d.Tax(ctx, business, start, end), true
	default:
		return nil, false
	}
}

func (d *Detector) observed(domain Domain, results []Result) []Result {
	obs.ObserveAnomalyCheck(string(domain), len(results))
	return results
}

func (d *Detector) degrade(domain Domain, subject string, err error) {
	obs.Warn("anomaly", "detector degraded to no-anomaly", err, map[string]any{
		"domain":  string(domain),
		"subject": subject,
	})
	obs.ObserveAnomalyCheck(string(domain), 0)
}

// excluding returns values without the element at index i.
func excluding(values []float64, i int) []float64 {
	out := make([]float64, 0, len(values)-1)
	out = append(out, values[:i]...)
	return append(out, values[i+1:]...)
}
