package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllocationRowsSkipsHeaderAndBlanks(t *testing.T) {
	records := [][]string{
		{"head_code", "period", "amount", "notes"},
		{"OPEX", "1", "1000", "rent"},
		{"", "", ""},
		{"REV", "2", "2,500.50"},
	}
	rows, failures := parseAllocationRows(records)
	require.Empty(t, failures)
	require.Len(t, rows, 2)

	assert.Equal(t, "OPEX", rows[0].HeadCode)
	assert.Equal(t, 1, rows[0].PeriodNumber)
	assert.True(t, rows[0].Amount.Equal(dec("1000")))
	assert.Equal(t, "rent", rows[0].Notes)

	assert.Equal(t, "REV", rows[1].HeadCode)
	assert.True(t, rows[1].Amount.Equal(dec("2500.50")), "thousands separators stripped")
	assert.Equal(t, 4, rows[1].Line)
}

func TestParseAllocationRowsPerLineFailures(t *testing.T) {
	records := [][]string{
		{"OPEX", "one", "1000"},
		{"OPEX", "1", "lots"},
		{"OPEX", "1"},
		{"", "2", "50"},
		{"CAPEX", "3", "75"},
	}
	rows, failures := parseAllocationRows(records)

	require.Len(t, rows, 1, "good line survives bad neighbours")
	assert.Equal(t, "CAPEX", rows[0].HeadCode)

	require.Len(t, failures, 4)
	for _, f := range failures {
		assert.Equal(t, false, f["success"])
		assert.NotEmpty(t, f["error"])
	}
}

func TestIsUploadHeader(t *testing.T) {
	assert.True(t, isUploadHeader([]string{"head_code", "period", "amount"}))
	assert.True(t, isUploadHeader([]string{" Head_Code ", "p", "a"}))
	assert.False(t, isUploadHeader([]string{"OPEX", "1", "100"}))
	assert.False(t, isUploadHeader(nil))
}

func TestGetFileExt(t *testing.T) {
	assert.Equal(t, ".xlsx", getFileExt("Q1 Budget.XLSX"))
	assert.Equal(t, ".csv", getFileExt("grid.csv"))
	assert.Equal(t, "", getFileExt("noext"))
}
