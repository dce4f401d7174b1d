package budget

import (
	"encoding/csv"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"BudgetCorpSaas/api"
	"BudgetCorpSaas/api/constants"
	"BudgetCorpSaas/internal/config"

	"github.com/extrame/xls"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Spreadsheet submission: managers fill a cycle grid offline and upload it.
// Expected columns: head_code, period, amount[, notes]. A header row is
// detected and skipped.

func getFileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func parseAllocationFile(file multipart.File, ext string) ([][]string, error) {
	switch ext {
	case ".csv":
		r := csv.NewReader(file)
		r.FieldsPerRecord = -1
		return r.ReadAll()
	case ".xlsx":
		f, err := excelize.OpenReader(file)
		if err != nil {
			return nil, err
		}
		sheet := f.GetSheetName(0)
		return f.GetRows(sheet)
	case ".xls":
		wb, err := xls.OpenReader(file, "utf-8")
		if err != nil {
			return nil, err
		}
		sheet := wb.GetSheet(0)
		if sheet == nil {
			return nil, fmt.Errorf("xls file has no sheets")
		}
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for i := 0; i <= int(sheet.MaxRow); i++ {
			row := sheet.Row(i)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol()+1)
			for c := row.FirstCol(); c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%s: %s", constants.ErrUnsupportedFile, ext)
}

// uploadRow is one parsed spreadsheet line keyed by head code; the handler
// resolves codes to head ids before writing.
type uploadRow struct {
	HeadCode     string
	PeriodNumber int
	Amount       decimal.Decimal
	Notes        string
	Line         int
}

func isUploadHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "head_code")
}

// parseAllocationRows turns raw sheet records into typed rows, reporting one
// error entry per malformed line instead of aborting the file.
func parseAllocationRows(records [][]string) ([]uploadRow, []map[string]interface{}) {
	var (
		rows     []uploadRow
		failures []map[string]interface{}
	)
	for i, record := range records {
		line := i + 1
		if i == 0 && isUploadHeader(record) {
			continue
		}
		if len(record) == 0 {
			continue
		}
		blank := true
		for _, c := range record {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}
		if len(record) < 3 {
			failures = append(failures, map[string]interface{}{
				"success": false, "line": line, "error": "expected head_code, period, amount",
			})
			continue
		}
		headCode := strings.TrimSpace(record[0])
		if headCode == "" {
			failures = append(failures, map[string]interface{}{
				"success": false, "line": line, "error": "missing head_code",
			})
			continue
		}
		period, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			failures = append(failures, map[string]interface{}{
				"success": false, "line": line, "error": "invalid period: " + record[1],
			})
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(record[2]), ",", ""))
		if err != nil {
			failures = append(failures, map[string]interface{}{
				"success": false, "line": line, "error": "invalid amount: " + record[2],
			})
			continue
		}
		notes := ""
		if len(record) > 3 {
			notes = strings.TrimSpace(record[3])
		}
		rows = append(rows, uploadRow{
			HeadCode: headCode, PeriodNumber: period, Amount: amount, Notes: notes, Line: line,
		})
	}
	return rows, failures
}

// UploadBudgetAllocations ingests a department's cycle grid from a
// .csv/.xlsx/.xls file through the same guarded draft-upsert path as the JSON
// endpoint.
func UploadBudgetAllocations(pgxPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(config.UploadMaxMemoryBytes); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return
		}
		userID := r.FormValue("user_id")
		cycleID := r.FormValue("cycle_id")
		departmentID := r.FormValue("department_id")

		ctx := r.Context()
		session := api.GetSessionFromCtx(ctx)
		if session == nil || session.UserID != userID {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		if !api.DepartmentAccessible(ctx, session, departmentID) {
			api.RespondWithError(w, http.StatusForbidden, "department not accessible for this user")
			return
		}

		cycle, err := fetchCycle(ctx, pgxPool, cycleID)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "cycle not found: "+err.Error())
			return
		}
		if err := guardManagerWrite(cycle, departmentID); err != nil {
			api.RespondWithError(w, http.StatusForbidden, err.Error())
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		records, err := parseAllocationFile(file, getFileExt(header.Filename))
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "failed to parse file: "+err.Error())
			return
		}
		parsed, failures := parseAllocationRows(records)

		heads, err := fetchHeadCatalog(ctx, pgxPool, true)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		idByCode := make(map[string]string, len(heads))
		activeHeads := make(map[string]bool, len(heads))
		for _, h := range heads {
			idByCode[strings.ToUpper(h.HeadCode)] = h.HeadID
			activeHeads[h.HeadID] = true
		}

		cells := make([]draftCell, 0, len(parsed))
		for _, row := range parsed {
			headID, ok := idByCode[strings.ToUpper(row.HeadCode)]
			if !ok {
				failures = append(failures, map[string]interface{}{
					"success": false, "line": row.Line, "error": "unknown head_code " + row.HeadCode,
				})
				continue
			}
			cells = append(cells, draftCell{
				HeadID: headID, PeriodNumber: row.PeriodNumber,
				Amount: row.Amount, Notes: row.Notes,
			})
		}

		results := upsertDraftCells(ctx, pgxPool, cycleID, departmentID, cells, cycle.PeriodType.Periods(), activeHeads)
		results = append(results, failures...)
		api.LogInfo("upload for department %s cycle %s: %d rows parsed, %d failures",
			departmentID, cycleID, len(cells), len(failures))
		api.RespondWithPayload(w, api.IsBulkSuccess(results), "", results)
	}
}
