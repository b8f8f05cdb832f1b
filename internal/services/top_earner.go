package services

import (
	"github.com/shopspring/decimal"

	"topearner/internal/core"
)

// TopEarner is the employee holding the running maximum at the end of a pass.
type TopEarner struct {
	Employee       core.EmployeeKey
	Total          decimal.Decimal
	TransactionIDs []string // qualifying ids, in encounter order
}

type employeeTotals struct {
	total      decimal.Decimal
	qualifying []string
}

// TopEarnerAggregator accumulates per-employee totals for one reference year
// and tracks the employee that first reached the highest total.
//
// The running maximum only moves when an employee's total is strictly
// greater than it, so on ties the incumbent keeps the title.
type TopEarnerAggregator struct {
	year      int
	employees map[core.EmployeeKey]*employeeTotals
	counted   int

	hasTop   bool
	top      core.EmployeeKey
	topTotal decimal.Decimal
}

// NewTopEarnerAggregator creates an aggregator for transactions in referenceYear (UTC).
func NewTopEarnerAggregator(referenceYear int) *TopEarnerAggregator {
	return &TopEarnerAggregator{
		year:      referenceYear,
		employees: make(map[core.EmployeeKey]*employeeTotals),
	}
}

// Add processes a transaction and reports whether it fell in the reference year.
func (a *TopEarnerAggregator) Add(tx core.Transaction) bool {
	if year, ok := tx.Timestamp.UTCYear(); !ok || year != a.year {
		return false
	}
	a.counted++

	acc, ok := a.employees[tx.Employee]
	if !ok {
		acc = &employeeTotals{qualifying: []string{}}
		a.employees[tx.Employee] = acc
	}
	acc.total = acc.total.Add(tx.Amount.Decimal)
	if tx.Kind.Qualifying() {
		acc.qualifying = append(acc.qualifying, tx.ID)
	}

	if !a.hasTop || acc.total.GreaterThan(a.topTotal) {
		a.hasTop = true
		a.top = tx.Employee
		a.topTotal = acc.total
	}
	return true
}

// Counted returns the number of transactions that matched the reference year.
func (a *TopEarnerAggregator) Counted() int {
	return a.counted
}

// Total returns the accumulated total for an employee.
func (a *TopEarnerAggregator) Total(employee core.EmployeeKey) (decimal.Decimal, bool) {
	acc, ok := a.employees[employee]
	if !ok {
		return decimal.Zero, false
	}
	return acc.total, true
}

// Result returns the top earner. ok is false when no transaction matched the
// reference year.
func (a *TopEarnerAggregator) Result() (TopEarner, bool) {
	if !a.hasTop {
		return TopEarner{}, false
	}
	acc := a.employees[a.top]
	return TopEarner{
		Employee:       a.top,
		Total:          acc.total,
		TransactionIDs: append([]string{}, acc.qualifying...),
	}, true
}

// Reset clears all state so the aggregator can be reused for the same year.
func (a *TopEarnerAggregator) Reset() {
	a.employees = make(map[core.EmployeeKey]*employeeTotals)
	a.counted = 0
	a.hasTop = false
	a.top = core.EmployeeKey{}
	a.topTotal = decimal.Zero
}

// TopEarnerQualifyingTransactions returns the qualifying transaction ids of
// the employee with the highest total in referenceYear, in encounter order.
// ok is false when no transaction fell in referenceYear. A top earner without
// qualifying transactions yields an empty, non-nil slice.
func TopEarnerQualifyingTransactions(txs []core.Transaction, referenceYear int) (ids []string, ok bool) {
	agg := NewTopEarnerAggregator(referenceYear)
	for _, tx := range txs {
		agg.Add(tx)
	}
	top, ok := agg.Result()
	if !ok {
		return nil, false
	}
	return top.TransactionIDs, true
}
