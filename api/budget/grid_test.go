package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCatalog() []BudgetHead {
	return []BudgetHead{
		{HeadID: "BH-000001", HeadCode: "REV", HeadName: "Revenue", HeadType: HeadTypeIncome, DisplayOrder: 1, IsActive: true},
		{HeadID: "BH-000002", HeadCode: "GRANTS", HeadName: "Grants", HeadType: HeadTypeIncome, DisplayOrder: 2, IsActive: true},
		{HeadID: "BH-000003", HeadCode: "OPEX", HeadName: "Operating Expenses", HeadType: HeadTypeExpenditure, DisplayOrder: 1, IsActive: true},
		{HeadID: "BH-000004", HeadCode: "OPEX-TRAVEL", HeadName: "Travel", HeadType: HeadTypeExpenditure, ParentHeadID: strPtr("BH-000003"), DisplayOrder: 1, IsActive: true},
		{HeadID: "BH-000005", HeadCode: "CAPEX", HeadName: "Capital Expenses", HeadType: HeadTypeExpenditure, DisplayOrder: 2, IsActive: true},
	}
}

func alloc(id, headID, dept string, period int, amount string) BudgetAllocation {
	return BudgetAllocation{
		AllocationID:    id,
		CycleID:         "BC-000001",
		HeadID:          headID,
		DepartmentID:    dept,
		PeriodNumber:    period,
		AllocatedAmount: dec(amount),
		Status:          StatusSubmitted,
	}
}

func TestBuildDepartmentGridsQuarterlyTotals(t *testing.T) {
	allocations := []BudgetAllocation{
		alloc("a1", "BH-000003", "D1", 1, "1000"),
		alloc("a2", "BH-000003", "D1", 2, "1500"),
		alloc("a3", "BH-000001", "D1", 1, "5000"),
	}

	grids := BuildDepartmentGrids(allocations, testCatalog(), 4)
	require.Len(t, grids, 1)
	g := grids["D1"]
	require.NotNil(t, g)

	// OPEX row is dense across all four quarters even though only two were
	// submitted.
	row := g.PeriodAmounts("BH-000003")
	require.Len(t, row, 4)
	assert.True(t, row[0].Equal(dec("1000")), "q1 = %s", row[0])
	assert.True(t, row[1].Equal(dec("1500")), "q2 = %s", row[1])
	assert.True(t, row[2].IsZero())
	assert.True(t, row[3].IsZero())

	assert.True(t, g.Totals.RowTotalByHead["BH-000003"].Equal(dec("2500")))
	assert.True(t, g.Totals.IncomeTotal.Equal(dec("5000")))
	assert.True(t, g.Totals.ExpenseTotal.Equal(dec("2500")))
	assert.True(t, g.Totals.NetTotal.Equal(dec("2500")))
	assert.True(t, g.Totals.IncomeByPeriod[0].Equal(dec("5000")))
	assert.True(t, g.Totals.ExpenseByPeriod[1].Equal(dec("1500")))
}

func TestBuildDepartmentGridsEmptyHeadsStillRender(t *testing.T) {
	allocations := []BudgetAllocation{
		alloc("a1", "BH-000003", "D1", 1, "100"),
	}
	grids := BuildDepartmentGrids(allocations, testCatalog(), 12)
	g := grids["D1"]
	require.NotNil(t, g)

	// Every active catalog head appears, submitted or not.
	assert.Len(t, g.IncomeHeads, 2)
	var expCodes []string
	for _, h := range g.ExpenditureHeads {
		expCodes = append(expCodes, h.HeadCode)
	}
	assert.Equal(t, []string{"OPEX", "CAPEX"}, expCodes)

	// GRANTS has no cells; its dense row is all zeros.
	row := g.PeriodAmounts("BH-000002")
	require.Len(t, row, 12)
	for _, v := range row {
		assert.True(t, v.IsZero())
	}
}

func TestBuildDepartmentGridsChildNesting(t *testing.T) {
	allocations := []BudgetAllocation{
		alloc("a1", "BH-000004", "D1", 1, "200"),
	}
	grids := BuildDepartmentGrids(allocations, testCatalog(), 4)
	g := grids["D1"]
	require.NotNil(t, g)

	var opex *BudgetHead
	for i := range g.ExpenditureHeads {
		if g.ExpenditureHeads[i].HeadCode == "OPEX" {
			opex = &g.ExpenditureHeads[i]
		}
	}
	require.NotNil(t, opex)
	require.Len(t, opex.Children, 1)
	assert.Equal(t, "OPEX-TRAVEL", opex.Children[0].HeadCode)

	// Child amounts count toward expenditure totals.
	assert.True(t, g.Totals.ExpenseTotal.Equal(dec("200")))
}

func TestBuildDepartmentGridsMultipleDepartments(t *testing.T) {
	allocations := []BudgetAllocation{
		alloc("a1", "BH-000001", "D1", 1, "10"),
		alloc("a2", "BH-000001", "D2", 1, "20"),
		alloc("a3", "BH-000003", "D2", 3, "5"),
	}
	grids := BuildDepartmentGrids(allocations, testCatalog(), 4)
	require.Len(t, grids, 2)
	assert.True(t, grids["D1"].Totals.IncomeTotal.Equal(dec("10")))
	assert.True(t, grids["D2"].Totals.IncomeTotal.Equal(dec("20")))
	assert.True(t, grids["D2"].Totals.ExpenseTotal.Equal(dec("5")))

	// D1 never touched OPEX; its expense side is zero, not absent.
	assert.True(t, grids["D1"].Totals.ExpenseTotal.IsZero())
}

func TestBuildDepartmentGridsDeactivatedHeadWithData(t *testing.T) {
	catalog := testCatalog()
	catalog[4].IsActive = false // CAPEX retired after submissions landed

	allocations := []BudgetAllocation{
		alloc("a1", "BH-000005", "D1", 2, "900"),
	}
	grids := BuildDepartmentGrids(allocations, catalog, 4)
	g := grids["D1"]
	require.NotNil(t, g)

	var codes []string
	for _, h := range g.ExpenditureHeads {
		codes = append(codes, h.HeadCode)
	}
	assert.Contains(t, codes, "CAPEX", "historical cells keep the retired head visible")
	assert.True(t, g.Totals.ExpenseTotal.Equal(dec("900")))
}

func TestBuildDepartmentGridsDeactivatedHeadWithoutData(t *testing.T) {
	catalog := testCatalog()
	catalog[1].IsActive = false // GRANTS retired, no cells

	allocations := []BudgetAllocation{
		alloc("a1", "BH-000001", "D1", 1, "10"),
	}
	g := BuildDepartmentGrids(allocations, catalog, 4)["D1"]
	require.NotNil(t, g)
	for _, h := range g.IncomeHeads {
		assert.NotEqual(t, "GRANTS", h.HeadCode)
	}
}

func TestBuildDepartmentGridsOrphanPromotedToRoot(t *testing.T) {
	catalog := testCatalog()
	catalog[2].IsActive = false // OPEX parent retired, child survives

	allocations := []BudgetAllocation{
		alloc("a1", "BH-000004", "D1", 1, "50"),
	}
	g := BuildDepartmentGrids(allocations, catalog, 4)["D1"]
	require.NotNil(t, g)

	var codes []string
	for _, h := range g.ExpenditureHeads {
		codes = append(codes, h.HeadCode)
	}
	assert.Contains(t, codes, "OPEX-TRAVEL", "child of a dropped parent renders at root")
}

func TestBuildDepartmentGridsIdempotent(t *testing.T) {
	allocations := []BudgetAllocation{
		alloc("a1", "BH-000001", "D1", 1, "100"),
		alloc("a2", "BH-000003", "D1", 4, "40"),
	}
	first := BuildDepartmentGrids(allocations, testCatalog(), 4)
	second := BuildDepartmentGrids(allocations, testCatalog(), 4)

	require.Len(t, second, len(first))
	for dept, g1 := range first {
		g2 := second[dept]
		require.NotNil(t, g2)
		assert.True(t, g1.Totals.NetTotal.Equal(g2.Totals.NetTotal))
		assert.Equal(t, len(g1.Cells), len(g2.Cells))
	}
}

func TestBuildDepartmentGridsNoAllocations(t *testing.T) {
	grids := BuildDepartmentGrids(nil, testCatalog(), 12)
	assert.Empty(t, grids)
}

func TestBuildDepartmentGridsOutOfRangePeriodIgnoredInTotals(t *testing.T) {
	allocations := []BudgetAllocation{
		alloc("a1", "BH-000001", "D1", 13, "100"), // beyond a monthly cycle
		alloc("a2", "BH-000001", "D1", 1, "10"),
	}
	g := BuildDepartmentGrids(allocations, testCatalog(), 12)["D1"]
	require.NotNil(t, g)
	assert.True(t, g.Totals.IncomeTotal.Equal(dec("10")))
}
