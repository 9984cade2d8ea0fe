package collector

import (
	"reflect"
	"testing"

	"MarketArchive/internal/model"
)

func report(date string, kv ...any) model.Report {
	r := model.Report{model.KeyFiscalDateEnding: date}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func financial(source string, quarterlyIncome ...model.Report) *model.FinancialRecord {
	rec := &model.FinancialRecord{
		QuarterlyData: model.NewStatements(),
		AnnualData:    model.NewStatements(),
		DataSource:    source,
	}
	rec.QuarterlyData.IncomeStatement = quarterlyIncome
	return rec
}

func dates(reports []model.Report) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.FiscalDate())
	}
	return out
}

func TestMergeFinancial_LastWriterWins(t *testing.T) {
	a := financial("alpha_vantage", report("2023-12-31", "totalRevenue", 100.0))
	b := financial("yahoo", report("2023-12-31", "totalRevenue", 200.0))

	got := MergeFinancial([]*model.FinancialRecord{a, b})
	income := got.QuarterlyData.IncomeStatement
	if len(income) != 1 {
		t.Fatalf("expected 1 report, got %d", len(income))
	}
	if income[0]["totalRevenue"] != 200.0 {
		t.Errorf("expected later source to win, got %v", income[0]["totalRevenue"])
	}

	got = MergeFinancial([]*model.FinancialRecord{b, a})
	if v := got.QuarterlyData.IncomeStatement[0]["totalRevenue"]; v != 100.0 {
		t.Errorf("expected reversed order to flip winner, got %v", v)
	}
}

func TestMergeFinancial_SortedNewestFirst(t *testing.T) {
	a := financial("a", report("2023-03-31"), report("2023-12-31"))
	b := financial("b", report("2024-03-31"), report("2023-06-30"))

	got := MergeFinancial([]*model.FinancialRecord{a, b})
	want := []string{"2024-03-31", "2023-12-31", "2023-06-30", "2023-03-31"}
	if d := dates(got.QuarterlyData.IncomeStatement); !reflect.DeepEqual(d, want) {
		t.Errorf("expected %v, got %v", want, d)
	}
	if got.DataQuality.QuarterlyDataPoints.IncomeStatement != 4 {
		t.Errorf("expected 4 quarterly income points, got %+v", got.DataQuality.QuarterlyDataPoints)
	}
}

func TestMergeFinancial_KeylessReportsDropped(t *testing.T) {
	a := financial("a", report("2023-12-31"), model.Report{"totalRevenue": 1.0}, model.Report{model.KeyFiscalDateEnding: ""})
	a.AnnualData.BalanceSheet = []model.Report{{"totalAssets": 5.0}}

	got := MergeFinancial([]*model.FinancialRecord{a})
	if n := len(got.QuarterlyData.IncomeStatement); n != 1 {
		t.Errorf("expected keyless reports excluded, got %d reports", n)
	}
	if len(got.AnnualData.BalanceSheet) != 0 {
		t.Errorf("expected empty annual balance sheet, got %v", got.AnnualData.BalanceSheet)
	}
	if got.DataQuality.DroppedReports != 3 {
		t.Errorf("expected 3 dropped reports, got %d", got.DataQuality.DroppedReports)
	}
}

func TestMergeFinancial_DateAlias(t *testing.T) {
	a := financial("a", model.Report{model.KeyDate: "2023-12-31", "v": 1.0})
	b := financial("b", report("2023-12-31", "v", 2.0))

	got := MergeFinancial([]*model.FinancialRecord{a, b})
	if len(got.QuarterlyData.IncomeStatement) != 1 {
		t.Fatalf("expected Date and fiscalDateEnding to collide, got %v", got.QuarterlyData.IncomeStatement)
	}
	if got.QuarterlyData.IncomeStatement[0]["v"] != 2.0 {
		t.Errorf("expected later report to win")
	}
}

func TestMergeFinancial_EarningsAndMetrics(t *testing.T) {
	a := financial("a", report("2023-12-31"))
	a.Earnings = &model.Earnings{Historical: []model.Report{{"q": "a1"}}, Upcoming: []model.Report{}}
	a.KeyMetrics = map[string]any{"beta": 1.0, "pe": 10.0}
	b := financial("", report("2023-09-30"))
	b.Earnings = &model.Earnings{Historical: []model.Report{{"q": "b1"}}, Upcoming: []model.Report{{"q": "b2"}}}
	b.KeyMetrics = map[string]any{"pe": 12.0}

	got := MergeFinancial([]*model.FinancialRecord{a, b})
	if len(got.Earnings.Historical) != 2 || len(got.Earnings.Upcoming) != 1 {
		t.Errorf("expected concatenated earnings, got %+v", got.Earnings)
	}
	if got.KeyMetrics["pe"] != 12.0 || got.KeyMetrics["beta"] != 1.0 {
		t.Errorf("expected overlaid key metrics, got %v", got.KeyMetrics)
	}
	if want := []string{"a", unknownSource}; !reflect.DeepEqual(got.DataSources, want) {
		t.Errorf("expected sources %v, got %v", want, got.DataSources)
	}
	if got.DataQuality.NumberOfSources != 2 {
		t.Errorf("expected 2 sources, got %d", got.DataQuality.NumberOfSources)
	}
}

func TestMergeFinancial_EmptySequencesNotNil(t *testing.T) {
	got := MergeFinancial([]*model.FinancialRecord{{DataSource: "a"}})
	for _, g := range model.Granularities {
		for _, typ := range model.ReportTypes {
			if got.Period(g).Get(typ) == nil {
				t.Errorf("%s %s is nil", g, typ)
			}
		}
	}
	if got.Earnings.Historical == nil || got.Earnings.Upcoming == nil || got.KeyMetrics == nil {
		t.Error("expected non-nil earnings and key metrics")
	}
}

func TestMergeFinancial_Idempotent(t *testing.T) {
	a := financial("a", report("2023-12-31", "v", 1.0), report("2023-09-30", "v", 2.0))
	b := financial("b", report("2023-12-31", "v", 3.0))

	once := MergeFinancial([]*model.FinancialRecord{a, b})
	twice := MergeFinancial([]*model.FinancialRecord{once})
	for _, g := range model.Granularities {
		for _, typ := range model.ReportTypes {
			if !reflect.DeepEqual(once.Period(g).Get(typ), twice.Period(g).Get(typ)) {
				t.Errorf("%s %s changed on re-merge", g, typ)
			}
		}
	}
}

func TestMergeFinancial_DisjointInputsCommute(t *testing.T) {
	a := financial("a", report("2023-12-31"), report("2022-12-31"))
	b := financial("b", report("2023-06-30"))

	ab := MergeFinancial([]*model.FinancialRecord{a, b})
	ba := MergeFinancial([]*model.FinancialRecord{b, a})
	if !reflect.DeepEqual(ab.QuarterlyData, ba.QuarterlyData) {
		t.Errorf("expected equal content, got %v vs %v", ab.QuarterlyData, ba.QuarterlyData)
	}
}
