package collector

import (
	"log"
	"maps"
	"slices"
	"strings"
	"time"

	"MarketArchive/internal/model"
)

const unknownSource = "unknown"

// MergeFinancial combines valid per-provider records into one record.
//
// Statement sequences are deduplicated on the report's fiscal date with the
// last record in input order winning, then sorted newest first. Reports
// with no fiscal date are dropped and counted. Earnings are concatenated
// and key metrics are overlaid in input order.
func MergeFinancial(records []*model.FinancialRecord) *model.FinancialRecord {
	now := time.Now()
	merged := &model.FinancialRecord{
		QuarterlyData:  model.NewStatements(),
		AnnualData:     model.NewStatements(),
		Earnings:       &model.Earnings{Historical: []model.Report{}, Upcoming: []model.Report{}},
		KeyMetrics:     map[string]any{},
		CollectionTime: now,
		DataSources:    []string{},
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		source := rec.DataSource
		if source == "" {
			source = unknownSource
		}
		merged.DataSources = append(merged.DataSources, source)

		for _, g := range model.Granularities {
			dst, src := merged.Period(g), rec.Period(g)
			for _, t := range model.ReportTypes {
				dst.Set(t, append(dst.Get(t), src.Get(t)...))
			}
		}
		if rec.Earnings != nil {
			merged.Earnings.Historical = append(merged.Earnings.Historical, rec.Earnings.Historical...)
			merged.Earnings.Upcoming = append(merged.Earnings.Upcoming, rec.Earnings.Upcoming...)
		}
		maps.Copy(merged.KeyMetrics, rec.KeyMetrics)
	}

	dropped := 0
	for _, g := range model.Granularities {
		st := merged.Period(g)
		for _, t := range model.ReportTypes {
			reports, n := dedupeReports(st.Get(t))
			if n > 0 {
				log.Printf("[WARN] merge: dropped %d %s %s report(s) without a fiscal date", n, g, t)
			}
			dropped += n
			st.Set(t, reports)
		}
	}

	merged.DataQuality = &model.DataQuality{
		NumberOfSources:     len(merged.DataSources),
		Sources:             slices.Clone(merged.DataSources),
		QuarterlyDataPoints: merged.QuarterlyData.Counts(),
		AnnualDataPoints:    merged.AnnualData.Counts(),
		DroppedReports:      dropped,
		LastUpdate:          now,
	}
	return merged
}

// dedupeReports keeps the last report per fiscal date and sorts the result
// newest first. It returns the number of reports dropped for lacking a date.
func dedupeReports(reports []model.Report) ([]model.Report, int) {
	byDate := make(map[string]model.Report, len(reports))
	dropped := 0
	for _, r := range reports {
		key := r.FiscalDate()
		if key == "" {
			dropped++
			continue
		}
		byDate[key] = r
	}

	out := make([]model.Report, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Report) int {
		return strings.Compare(b.FiscalDate(), a.FiscalDate())
	})
	return out, dropped
}
