package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
)

// Hammers one item with concurrent OUT transactions and checks that the
// engine never overdraws: exactly initialStock requests may succeed.
func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	store := storage.NewMemoryStore()
	svc := service.NewInventoryService(store, nil, logger.Sugar())

	actor := domain.Actor{Email: "stress@example.com", Role: domain.RoleStaff}
	item, err := svc.CreateItem(ctx, actor, domain.ItemAttrs{
		Name:     "Stress Item",
		SKU:      "STRESS-001",
		Location: "Z-99",
		Quantity: initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, _, err := svc.Apply(ctx, actor, service.ApplyRequest{
				ItemID:   item.ID,
				Kind:     domain.MovementOut,
				Quantity: 1,
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	final, err := svc.GetItem(ctx, item.ID)
	if err != nil {
		log.Fatalf("failed to reload item: %v", err)
	}
	result, _ := svc.Reconcile(ctx, item.ID)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Final Quantity:   %d\n", final.Quantity)
	fmt.Printf("Ledger Derived:   %d\n", result.Derived)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: exactly %d transactions succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	if final.Quantity == 0 && result.Consistent {
		fmt.Println("PASS: stock depleted to 0 and ledger reconciles")
	} else {
		fmt.Printf("FAIL: final quantity %d, consistent=%v\n", final.Quantity, result.Consistent)
	}
}
