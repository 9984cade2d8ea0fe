package model

import "time"

// Identity keys of a financial report. Some providers use Date instead of
// fiscalDateEnding; both name the period end.
const (
	KeyFiscalDateEnding = "fiscalDateEnding"
	KeyDate             = "Date"
)

// Report is one reporting period's statement line items. The set of line
// items differs per provider, so no schema is enforced.
type Report map[string]any

// FiscalDate returns fiscalDateEnding, falling back to Date. It returns ""
// when neither is a non-empty string.
func (r Report) FiscalDate() string {
	if s, ok := r[KeyFiscalDateEnding].(string); ok && s != "" {
		return s
	}
	if s, ok := r[KeyDate].(string); ok && s != "" {
		return s
	}
	return ""
}

// ReportType names one of the three financial statements.
type ReportType string

const (
	IncomeStatement ReportType = "income_statement"
	BalanceSheet    ReportType = "balance_sheet"
	CashFlow        ReportType = "cash_flow"
)

// ReportTypes lists every statement type in output order.
var ReportTypes = []ReportType{IncomeStatement, BalanceSheet, CashFlow}

// Statements holds the three statement sequences for one granularity.
type Statements struct {
	IncomeStatement []Report `json:"income_statement"`
	BalanceSheet    []Report `json:"balance_sheet"`
	CashFlow        []Report `json:"cash_flow"`
}

// NewStatements returns Statements whose sequences are empty, not nil, so
// they encode as [].
func NewStatements() Statements {
	return Statements{
		IncomeStatement: []Report{},
		BalanceSheet:    []Report{},
		CashFlow:        []Report{},
	}
}

// Get returns the sequence for t.
func (s *Statements) Get(t ReportType) []Report {
	switch t {
	case IncomeStatement:
		return s.IncomeStatement
	case BalanceSheet:
		return s.BalanceSheet
	case CashFlow:
		return s.CashFlow
	}
	return nil
}

// Set replaces the sequence for t.
func (s *Statements) Set(t ReportType, reports []Report) {
	switch t {
	case IncomeStatement:
		s.IncomeStatement = reports
	case BalanceSheet:
		s.BalanceSheet = reports
	case CashFlow:
		s.CashFlow = reports
	}
}

// Empty reports whether all three sequences are empty.
func (s *Statements) Empty() bool {
	return len(s.IncomeStatement) == 0 && len(s.BalanceSheet) == 0 && len(s.CashFlow) == 0
}

// Counts returns the length of each sequence.
func (s *Statements) Counts() PointCounts {
	return PointCounts{
		IncomeStatement: len(s.IncomeStatement),
		BalanceSheet:    len(s.BalanceSheet),
		CashFlow:        len(s.CashFlow),
	}
}

// Earnings holds reported and scheduled earnings entries.
type Earnings struct {
	Historical []Report `json:"historical"`
	Upcoming   []Report `json:"upcoming"`
}

// PointCounts is the number of reports per statement type.
type PointCounts struct {
	IncomeStatement int `json:"income_statement"`
	BalanceSheet    int `json:"balance_sheet"`
	CashFlow        int `json:"cash_flow"`
}

// DataQuality summarises a merged financial record.
type DataQuality struct {
	NumberOfSources     int         `json:"number_of_sources"`
	Sources             []string    `json:"sources"`
	QuarterlyDataPoints PointCounts `json:"quarterly_data_points"`
	AnnualDataPoints    PointCounts `json:"annual_data_points"`
	DroppedReports      int         `json:"dropped_reports"`
	LastUpdate          time.Time   `json:"last_update"`
}

// FinancialRecord is either one provider's statements (DataSource set) or
// the merged result of several (DataSources and DataQuality set).
type FinancialRecord struct {
	QuarterlyData  Statements     `json:"quarterly_data"`
	AnnualData     Statements     `json:"annual_data"`
	Earnings       *Earnings      `json:"earnings"`
	KeyMetrics     map[string]any `json:"key_metrics"`
	CollectionTime time.Time      `json:"collection_time"`
	DataSource     string         `json:"data_source,omitempty"`
	DataSources    []string       `json:"data_sources,omitempty"`
	DataQuality    *DataQuality   `json:"data_quality,omitempty"`
}

// Period returns the statements for the named granularity.
func (r *FinancialRecord) Period(g Granularity) *Statements {
	if g == Quarterly {
		return &r.QuarterlyData
	}
	return &r.AnnualData
}

// Granularity is the reporting frequency of a statement sequence.
type Granularity string

const (
	Quarterly Granularity = "quarterly"
	Annual    Granularity = "annual"
)

// Granularities lists both granularities in output order.
var Granularities = []Granularity{Quarterly, Annual}
