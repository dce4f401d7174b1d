package budget

import (
	"fmt"
	"log"
	"net/http"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/internal/serviceiface"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BudgetService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
}

func NewBudgetService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &BudgetService{config: cfg, pool: pool}
}

func (s *BudgetService) Name() string {
	return "budget"
}

func (s *BudgetService) Start() error {
	go StartBudgetService(s.pool, s.config)
	return nil
}

func (s *BudgetService) Stop() error {
	return nil
}

// StartBudgetService wires the budget routes and serves them on the port from
// services.yaml. Every route runs behind the session prevalidation middleware
// so handlers can rely on a session and department list in the context.
func StartBudgetService(pool *pgxpool.Pool, cfg map[string]interface{}) {
	port := "7143"
	if cfg != nil {
		if p, ok := cfg["port"].(string); ok && p != "" {
			port = p
		}
		if p, ok := cfg["port"].(int); ok && p != 0 {
			port = fmt.Sprintf("%d", p)
		}
	}

	router := mux.NewRouter()
	router.Use(api.BudgetContextMiddleware(pool))

	// Head catalog (administrator)
	router.Handle("/budget/heads/create", CreateBudgetHeads(pool)).Methods("POST")
	router.Handle("/budget/heads/update", UpdateBudgetHeadsBulk(pool)).Methods("POST")
	router.Handle("/budget/heads/deactivate", DeactivateBudgetHead(pool)).Methods("POST")
	router.Handle("/budget/heads/active", GetActiveBudgetHeads(pool)).Methods("POST")
	router.Handle("/budget/heads/hierarchy", GetBudgetHeadHierarchy(pool)).Methods("POST")

	// Cycle registry (administrator)
	router.Handle("/budget/cycles/create", CreateBudgetCycle(pool)).Methods("POST")
	router.Handle("/budget/cycles/update", UpdateBudgetCycle(pool)).Methods("POST")
	router.Handle("/budget/cycles/transition", TransitionBudgetCycle(pool)).Methods("POST")
	router.Handle("/budget/cycles/get", GetBudgetCycle(pool)).Methods("POST")
	router.Handle("/budget/cycles", GetBudgetCycles(pool)).Methods("POST")

	// Allocation store (manager)
	router.Handle("/budget/allocations/upsert", UpsertDraftAllocations(pool)).Methods("POST")
	router.Handle("/budget/allocations/submit", SubmitAllocations(pool)).Methods("POST")
	router.Handle("/budget/allocations/upload", UploadBudgetAllocations(pool)).Methods("POST")
	router.Handle("/budget/allocations/pending", GetPendingAllocations(pool)).Methods("POST")

	// Review (reviewer)
	router.Handle("/budget/review/grids", GetReviewGrids(pool)).Methods("POST")
	router.Handle("/budget/review/summary", GetReviewQueueSummary(pool)).Methods("POST")
	router.Handle("/budget/review/mark-under-review", MarkAllocationsUnderReview(pool)).Methods("POST")
	router.Handle("/budget/review/decide", ReviewAllocations(pool)).Methods("POST")

	log.Printf("Budget Service started on :%s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Budget Service failed: %v", err)
	}
}
