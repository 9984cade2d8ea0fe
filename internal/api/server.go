// Package api serves the collected documents over a read-only HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"MarketArchive/internal/model"
	"MarketArchive/internal/store"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 15 * time.Second

// Server is the HTTP API server. Every request reads whole documents from
// the store, so it never blocks on a running collection.
type Server struct {
	router  chi.Router
	store   *store.Store
	subject string
	origins []string
}

// NewServer creates a server over st. An empty origins list allows any origin.
func NewServer(st *store.Store, subject string, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{store: st, subject: subject, origins: origins}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] API listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[INFO] shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/financial/annual/{fiscal_year}", s.handlePeriod(model.Annual, "fiscal_year"))
		r.Get("/financial/quarterly/{year_quarter}", s.handlePeriod(model.Quarterly, "year_quarter"))
		r.Get("/financial/available-periods", s.handleAvailablePeriods)
		r.Get("/market", s.handleDocument(store.MarketDocument))
		r.Get("/news", s.handleDocument(store.NewsDocument))
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%s financial data API is running", s.subject),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	docs := map[string]bool{}
	for _, name := range []string{store.FinancialDocument, store.MarketDocument, store.NewsDocument} {
		docs[name] = s.store.Exists(name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": docs,
	})
}

func (s *Server) loadFinancial() (*model.FinancialRecord, error) {
	var rec model.FinancialRecord
	if err := s.store.Load(store.FinancialDocument, &rec); err != nil {
		return nil, fmt.Errorf("load financial data: %w", err)
	}
	return &rec, nil
}

// periodResult is the response of the period lookups.
type periodResult struct {
	IncomeStatement []model.Report `json:"income_statement"`
	BalanceSheet    []model.Report `json:"balance_sheet"`
	CashFlow        []model.Report `json:"cash_flow"`
}

// handlePeriod returns the reports of granularity g whose fiscal date
// contains the path parameter, e.g. "2023" or "2023-06".
func (s *Server) handlePeriod(g model.Granularity, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := chi.URLParam(r, param)
		rec, err := s.loadFinancial()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		st := rec.Period(g)
		match := func(reports []model.Report) []model.Report {
			out := []model.Report{}
			for _, rep := range reports {
				if strings.Contains(rep.FiscalDate(), period) {
					out = append(out, rep)
				}
			}
			return out
		}
		res := periodResult{
			IncomeStatement: match(st.IncomeStatement),
			BalanceSheet:    match(st.BalanceSheet),
			CashFlow:        match(st.CashFlow),
		}
		if len(res.IncomeStatement)+len(res.BalanceSheet)+len(res.CashFlow) == 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no %s data found for %s", g, period))
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleAvailablePeriods(w http.ResponseWriter, r *http.Request) {
	rec, err := s.loadFinancial()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"annual_periods":    periods(&rec.AnnualData),
		"quarterly_periods": periods(&rec.QuarterlyData),
	})
}

// periods returns the distinct fiscal dates across all statements, newest first.
func periods(st *model.Statements) []string {
	out := []string{}
	for _, t := range model.ReportTypes {
		for _, rep := range st.Get(t) {
			if d := rep.FiscalDate(); d != "" {
				out = append(out, d)
			}
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	slices.Reverse(out)
	return out
}

// handleDocument serves a stored document as-is.
func (s *Server) handleDocument(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc json.RawMessage
		if err := s.store.Load(name, &doc); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("load %s: %v", name, err))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("[ERROR] write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
