package budget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeadType(t *testing.T) {
	ht, err := ParseHeadType("Income")
	require.NoError(t, err)
	assert.Equal(t, HeadTypeIncome, ht)

	ht, err = ParseHeadType(" expense ")
	require.NoError(t, err)
	assert.Equal(t, HeadTypeExpenditure, ht)

	_, err = ParseHeadType("capital")
	assert.Error(t, err)
}

func TestHeadTypeJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(HeadTypeExpenditure)
	require.NoError(t, err)
	assert.Equal(t, `"expenditure"`, string(b))

	var ht HeadType
	require.NoError(t, json.Unmarshal([]byte(`"income"`), &ht))
	assert.Equal(t, HeadTypeIncome, ht)

	assert.Error(t, json.Unmarshal([]byte(`"other"`), &ht))
}

func TestPeriodTypePeriods(t *testing.T) {
	assert.Equal(t, 12, PeriodTypeMonthly.Periods())
	assert.Equal(t, 4, PeriodTypeQuarterly.Periods())

	_, err := ParsePeriodType("weekly")
	assert.Error(t, err)
}

func TestCycleDepartmentAllowed(t *testing.T) {
	open := BudgetCycle{CycleID: "BC-000001"}
	assert.True(t, open.DepartmentAllowed("D1"), "nil allow-list admits everyone")

	restricted := BudgetCycle{CycleID: "BC-000002", AllowedDeptIDs: []string{"D1", "D2"}}
	assert.True(t, restricted.DepartmentAllowed("D2"))
	assert.False(t, restricted.DepartmentAllowed("D3"))

	empty := BudgetCycle{CycleID: "BC-000003", AllowedDeptIDs: []string{}}
	assert.False(t, empty.DepartmentAllowed("D1"), "empty list admits no one")
}
