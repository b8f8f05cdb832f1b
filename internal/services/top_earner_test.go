package services

import (
	"math/rand"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"topearner/internal/core"
)

const refYear = 2024

func tx(id, employee, amount string, kind core.Kind, year int) core.Transaction {
	return core.Transaction{
		ID:        id,
		Employee:  core.Employee(employee),
		Amount:    core.ParseAmount(amount),
		Timestamp: core.NewTimestamp(time.Date(year, 6, 15, 12, 0, 0, 0, time.UTC)),
		Kind:      kind,
	}
}

func TestTopEarnerQualifyingTransactions(t *testing.T) {
	const other core.Kind = "beta"

	tests := []struct {
		name   string
		txs    []core.Transaction
		want   []string
		wantOK bool
	}{
		{
			name:   "empty input",
			txs:    nil,
			wantOK: false,
		},
		{
			name: "only other years",
			txs: []core.Transaction{
				tx("t1", "A", "100", core.KindAlpha, refYear-1),
				tx("t2", "B", "200", core.KindAlpha, refYear+1),
			},
			wantOK: false,
		},
		{
			name:   "single qualifying transaction",
			txs:    []core.Transaction{tx("t1", "A", "10", core.KindAlpha, refYear)},
			want:   []string{"t1"},
			wantOK: true,
		},
		{
			name: "accumulated total beats larger single transaction",
			txs: []core.Transaction{
				tx("t1", "A", "100", core.KindAlpha, refYear),
				tx("t2", "B", "150", other, refYear),
				tx("t3", "A", "80", core.KindAlpha, refYear),
			},
			want:   []string{"t1", "t3"},
			wantOK: true,
		},
		{
			name: "non-qualifying ids are not reported",
			txs: []core.Transaction{
				tx("t1", "A", "100", core.KindAlpha, refYear),
				tx("t2", "A", "100", other, refYear),
				tx("t3", "B", "150", core.KindAlpha, refYear),
			},
			want:   []string{"t1"},
			wantOK: true,
		},
		{
			name: "top earner without qualifying transactions",
			txs: []core.Transaction{
				tx("t1", "A", "500", other, refYear),
				tx("t2", "B", "10", core.KindAlpha, refYear),
			},
			want:   []string{},
			wantOK: true,
		},
		{
			name: "tie keeps the employee that reached the total first",
			txs: []core.Transaction{
				tx("t1", "A", "100", core.KindAlpha, refYear),
				tx("t2", "B", "100", core.KindAlpha, refYear),
			},
			want:   []string{"t1"},
			wantOK: true,
		},
		{
			name: "tie reached later still keeps the incumbent",
			txs: []core.Transaction{
				tx("t1", "B", "60", core.KindAlpha, refYear),
				tx("t2", "A", "100", core.KindAlpha, refYear),
				tx("t3", "B", "40", core.KindAlpha, refYear),
			},
			want:   []string{"t2"},
			wantOK: true,
		},
		{
			name: "malformed amount counts as zero but id is kept",
			txs: []core.Transaction{
				tx("t1", "A", "abc", core.KindAlpha, refYear),
				tx("t2", "A", "5", core.KindAlpha, refYear),
				tx("t3", "B", "4", core.KindAlpha, refYear),
			},
			want:   []string{"t1", "t2"},
			wantOK: true,
		},
		{
			name: "other-year transactions do not contribute",
			txs: []core.Transaction{
				tx("t1", "A", "100", core.KindAlpha, refYear),
				tx("t2", "B", "90", core.KindAlpha, refYear),
				tx("t3", "B", "1000", core.KindAlpha, refYear-1),
			},
			want:   []string{"t1"},
			wantOK: true,
		},
		{
			name: "duplicate ids are kept",
			txs: []core.Transaction{
				tx("t1", "A", "1", core.KindAlpha, refYear),
				tx("t1", "A", "1", core.KindAlpha, refYear),
			},
			want:   []string{"t1", "t1"},
			wantOK: true,
		},
		{
			name: "first in-year transaction records a top earner even at zero",
			txs: []core.Transaction{
				tx("t1", "A", "0", core.KindAlpha, refYear),
			},
			want:   []string{"t1"},
			wantOK: true,
		},
		{
			name: "running maximum is a high-water mark",
			txs: []core.Transaction{
				tx("t1", "A", "100", core.KindAlpha, refYear),
				tx("t2", "A", "-50", core.KindAlpha, refYear),
				tx("t3", "B", "80", core.KindAlpha, refYear),
			},
			want:   []string{"t1", "t2"},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TopEarnerQualifyingTransactions(tt.txs, refYear)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				if got != nil {
					t.Fatalf("expected nil ids, got %v", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopEarnerAggregator_MissingEmployeeIsAKey(t *testing.T) {
	anon := core.Transaction{
		ID:        "t1",
		Employee:  core.NoEmployee,
		Amount:    core.NewAmount(50),
		Timestamp: core.NewTimestamp(time.Date(refYear, 1, 1, 0, 0, 0, 0, time.UTC)),
		Kind:      core.KindAlpha,
	}
	anon2 := anon
	anon2.ID = "t2"

	agg := NewTopEarnerAggregator(refYear)
	agg.Add(anon)
	agg.Add(tx("t3", "", "60", core.KindAlpha, refYear)) // present but empty id
	agg.Add(anon2)

	top, ok := agg.Result()
	if !ok {
		t.Fatal("expected a top earner")
	}
	if top.Employee != core.NoEmployee {
		t.Fatalf("expected missing employee key to win, got %v", top.Employee)
	}
	if !top.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total 100, got %s", top.Total)
	}
	if !reflect.DeepEqual(top.TransactionIDs, []string{"t1", "t2"}) {
		t.Fatalf("unexpected ids %v", top.TransactionIDs)
	}
	if total, _ := agg.Total(core.Employee("")); !total.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected empty-string employee total 60, got %s", total)
	}
}

func TestTopEarnerAggregator_InvalidTimestampSkipped(t *testing.T) {
	agg := NewTopEarnerAggregator(refYear)
	if agg.Add(core.Transaction{ID: "t1", Employee: core.Employee("A"), Amount: core.NewAmount(10), Kind: core.KindAlpha}) {
		t.Fatal("transaction without timestamp should be skipped")
	}
	if _, ok := agg.Result(); ok {
		t.Fatal("expected no top earner")
	}
	if agg.Counted() != 0 {
		t.Fatalf("expected 0 counted, got %d", agg.Counted())
	}
}

func TestTopEarnerAggregator_UTCYearBoundary(t *testing.T) {
	// 2024-12-31 22:00 at UTC-5 is 2025-01-01 03:00 UTC.
	late := core.Transaction{
		ID:        "late",
		Employee:  core.Employee("A"),
		Amount:    core.NewAmount(10),
		Timestamp: core.NewTimestamp(time.Date(2024, 12, 31, 22, 0, 0, 0, time.FixedZone("EST", -5*3600))),
		Kind:      core.KindAlpha,
	}
	if _, ok := TopEarnerQualifyingTransactions([]core.Transaction{late}, 2024); ok {
		t.Fatal("transaction in 2025 UTC must not count for 2024")
	}
	if ids, ok := TopEarnerQualifyingTransactions([]core.Transaction{late}, 2025); !ok || len(ids) != 1 {
		t.Fatalf("expected transaction to count for 2025, got %v %v", ids, ok)
	}
}

func TestTopEarnerAggregator_ResultIsACopy(t *testing.T) {
	agg := NewTopEarnerAggregator(refYear)
	agg.Add(tx("t1", "A", "10", core.KindAlpha, refYear))

	first, _ := agg.Result()
	first.TransactionIDs[0] = "mutated"

	second, _ := agg.Result()
	if second.TransactionIDs[0] != "t1" {
		t.Fatalf("result shares state with aggregator: %v", second.TransactionIDs)
	}
}

func TestTopEarnerAggregator_Reset(t *testing.T) {
	agg := NewTopEarnerAggregator(refYear)
	agg.Add(tx("t1", "A", "10", core.KindAlpha, refYear))
	agg.Reset()

	if _, ok := agg.Result(); ok {
		t.Fatal("expected no top earner after reset")
	}
	if agg.Counted() != 0 {
		t.Fatalf("expected 0 counted after reset, got %d", agg.Counted())
	}

	agg.Add(tx("t2", "B", "1", core.KindAlpha, refYear))
	top, ok := agg.Result()
	if !ok || top.Employee != core.Employee("B") {
		t.Fatalf("expected B after reset, got %+v %v", top, ok)
	}
}

func TestTopEarnerQualifyingTransactions_Idempotent(t *testing.T) {
	txs := randomTransactions(rand.New(rand.NewSource(1)), 500)

	first, ok1 := TopEarnerQualifyingTransactions(txs, refYear)
	second, ok2 := TopEarnerQualifyingTransactions(txs, refYear)
	if ok1 != ok2 || !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ: %v/%v vs %v/%v", first, ok1, second, ok2)
	}
}

func TestTopEarnerAggregator_TotalsIndependentOfOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	txs := randomTransactions(rng, 300)

	want := map[core.EmployeeKey]decimal.Decimal{}
	for _, tx := range txs {
		if year, _ := tx.Timestamp.UTCYear(); year == refYear {
			want[tx.Employee] = want[tx.Employee].Add(tx.Amount.Decimal)
		}
	}

	for round := 0; round < 5; round++ {
		rng.Shuffle(len(txs), func(i, j int) { txs[i], txs[j] = txs[j], txs[i] })
		agg := NewTopEarnerAggregator(refYear)
		for _, tx := range txs {
			agg.Add(tx)
		}
		for employee, total := range want {
			got, ok := agg.Total(employee)
			if !ok || !got.Equal(total) {
				t.Fatalf("round %d: %v total = %s, want %s", round, employee, got, total)
			}
		}
	}
}

func randomTransactions(rng *rand.Rand, n int) []core.Transaction {
	employees := []string{"A", "B", "C", "D"}
	kinds := []core.Kind{core.KindAlpha, "beta", "gamma"}
	years := []int{refYear - 1, refYear, refYear, refYear + 1}

	txs := make([]core.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, tx(
			"t"+strconv.Itoa(i),
			employees[rng.Intn(len(employees))],
			decimal.NewFromFloat(float64(rng.Intn(100000))/100).String(),
			kinds[rng.Intn(len(kinds))],
			years[rng.Intn(len(years))],
		))
	}
	return txs
}
