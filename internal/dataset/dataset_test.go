package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/models"
	recerrors "bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

func newTestLoader(t *testing.T, config *CSVConfig) *Loader {
	t.Helper()
	loader, err := NewLoader(config, logger.Discard())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	return loader
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"session.json", FormatJSON, false},
		{"session.YAML", FormatYAML, false},
		{"dir/session.yml", FormatYAML, false},
		{"statement.csv", FormatCSV, false},
		{"session.txt", "", true},
		{"session", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatFromPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FormatFromPath() = %v, want %v", got, tt.want)
			}
			if err != nil {
				recErr, ok := recerrors.AsReconcilerError(err)
				if !ok || recErr.Code != recerrors.CodeUnsupportedFormat {
					t.Errorf("expected unsupported format error, got %v", err)
				}
			}
		})
	}
}

func assertSession(t *testing.T, ds *Dataset) {
	t.Helper()

	if len(ds.StatementItems) != 5 {
		t.Fatalf("expected 5 statement items, got %d", len(ds.StatementItems))
	}
	if len(ds.LedgerEntries) != 5 {
		t.Fatalf("expected 5 ledger entries, got %d", len(ds.LedgerEntries))
	}

	s1 := ds.StatementItems[0]
	if s1.ID != "S1" || s1.Type != models.MovementCredit || !s1.Amount.Equal(decimal.RequireFromString("2500")) {
		t.Errorf("unexpected first statement item: %s", s1)
	}
	if !s1.Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2024-01-01, got %s", s1.Date)
	}

	s2 := ds.StatementItems[1]
	if s2.Type != models.MovementDebit {
		t.Errorf("expected type derived from negative amount to be DEBIT, got %s", s2.Type)
	}
	if !s2.Amount.Equal(decimal.RequireFromString("-389.90")) {
		t.Errorf("expected amount -389.90, got %s", s2.Amount)
	}

	if ds.StatementItems[4].Status != models.StatusReconciled {
		t.Errorf("expected S5 to be RECONCILED, got %s", ds.StatementItems[4].Status)
	}
	if ds.StatementItems[3].Status != models.StatusPending {
		t.Errorf("expected missing status to default to PENDING, got %s", ds.StatementItems[3].Status)
	}

	l1 := ds.LedgerEntries[0]
	if l1.Type != models.EntryIncome || l1.Category != "sales" {
		t.Errorf("unexpected first ledger entry: %s (category %q)", l1, l1.Category)
	}
	if !ds.LedgerEntries[2].Amount.Equal(decimal.RequireFromString("648.50")) {
		t.Errorf("expected L3 amount 648.50, got %s", ds.LedgerEntries[2].Amount)
	}
}

func TestLoader_LoadYAML(t *testing.T) {
	loader := newTestLoader(t, nil)

	ds, err := loader.Load(context.Background(), filepath.Join("testdata", "session.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	assertSession(t, ds)
	if err := ds.Validate(); err != nil {
		t.Errorf("loaded dataset should validate, got %v", err)
	}
}

func TestLoader_LoadJSON(t *testing.T) {
	loader := newTestLoader(t, nil)

	ds, err := loader.Load(context.Background(), filepath.Join("testdata", "session.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	assertSession(t, ds)
}

func TestLoader_JSONNumbersKeepPrecision(t *testing.T) {
	loader := newTestLoader(t, nil)
	doc := `{"statement_items":[{"id":"S1","date":"2024-01-01","amount":1234567.891,"type":"CREDIT"}]}`

	ds, err := loader.Decode(context.Background(), strings.NewReader(doc), FormatJSON, "inline")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := decimal.RequireFromString("1234567.891")
	if got := ds.StatementItems[0].Amount; !got.Equal(want) {
		t.Errorf("amount = %s, want %s", got, want)
	}
	if len(ds.LedgerEntries) != 0 {
		t.Errorf("expected no ledger entries, got %d", len(ds.LedgerEntries))
	}
}

func TestLoader_InvalidRecords(t *testing.T) {
	loader := newTestLoader(t, nil)

	ds, err := loader.Load(context.Background(), filepath.Join("testdata", "invalid.yaml"))
	if err == nil {
		t.Fatal("expected an error for invalid records")
	}
	if ds != nil {
		t.Error("expected no dataset when records are invalid")
	}

	summary, ok := recerrors.AsErrorSummary(err)
	if !ok {
		t.Fatalf("expected an ErrorSummary, got %T", err)
	}

	if summary.Total != 8 {
		for _, e := range summary.Errors {
			t.Log(e.Error())
		}
		t.Fatalf("expected 8 errors, got %d", summary.Total)
	}

	expectedCodes := map[recerrors.ErrorCode]int{
		recerrors.CodeInvalidData:   4,
		recerrors.CodeMissingField:  2,
		recerrors.CodeDuplicateID:   1,
		recerrors.CodeInvalidAmount: 1,
	}
	for code, count := range expectedCodes {
		if summary.ByCode[code] != count {
			t.Errorf("expected %d errors with code %s, got %d", count, code, summary.ByCode[code])
		}
	}

	if summary.GetExitCode() != 3 {
		t.Errorf("expected exit code 3, got %d", summary.GetExitCode())
	}

	first := summary.Errors[0]
	if first.Context["field"] != "date" || first.Context["record"] != 0 {
		t.Errorf("expected first error on record 0 field date, got context %v", first.Context)
	}
}

func TestLoader_FileErrors(t *testing.T) {
	loader := newTestLoader(t, nil)
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		code recerrors.ErrorCode
	}{
		{"missing file", filepath.Join(dir, "missing.yaml"), recerrors.CodeFileNotFound},
		{"unsupported extension", writeFile(t, dir, "session.txt", "x"), recerrors.CodeUnsupportedFormat},
		{"single csv", writeFile(t, dir, "session.csv", "id\n"), recerrors.CodeUnsupportedFormat},
		{"malformed json", writeFile(t, dir, "broken.json", `{"statement_items": [`), recerrors.CodeInvalidFormat},
		{"malformed yaml", writeFile(t, dir, "broken.yaml", "statement_items: [\n  - id: S1\n"), recerrors.CodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), tt.path)
			recErr, ok := recerrors.AsReconcilerError(err)
			if !ok {
				t.Fatalf("expected ReconcilerError, got %v", err)
			}
			if recErr.Code != tt.code {
				t.Errorf("expected code %s, got %s (%v)", tt.code, recErr.Code, err)
			}
		})
	}
}

func TestLoader_EmptyYAMLIsEmptySession(t *testing.T) {
	loader := newTestLoader(t, nil)

	ds, err := loader.Decode(context.Background(), strings.NewReader(""), FormatYAML, "empty.yaml")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(ds.StatementItems) != 0 || len(ds.LedgerEntries) != 0 {
		t.Errorf("expected empty session, got %s", ds)
	}
}

func TestLoader_Cancelled(t *testing.T) {
	loader := newTestLoader(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, filepath.Join("testdata", "session.yaml"))
	recErr, ok := recerrors.AsReconcilerError(err)
	if !ok || recErr.Code != recerrors.CodeSessionCancelled {
		t.Fatalf("expected session cancelled error, got %v", err)
	}
}

func TestLoader_LoadCSV(t *testing.T) {
	loader := newTestLoader(t, nil)

	ds, err := loader.LoadCSV(context.Background(),
		filepath.Join("testdata", "statement.csv"),
		filepath.Join("testdata", "ledger.csv"))
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}

	if len(ds.StatementItems) != 3 || len(ds.LedgerEntries) != 3 {
		t.Fatalf("expected 3 items and 3 entries, got %s", ds)
	}

	if ds.StatementItems[1].Type != models.MovementDebit {
		t.Errorf("expected S2 type DEBIT, got %s", ds.StatementItems[1].Type)
	}
	if ds.StatementItems[2].Description != "PIX RECEBIDO, LIMA" {
		t.Errorf("quoted description not preserved: %q", ds.StatementItems[2].Description)
	}
	if ds.StatementItems[2].Type != models.MovementCredit {
		t.Errorf("expected short type C to parse as CREDIT, got %s", ds.StatementItems[2].Type)
	}
	if !ds.LedgerEntries[0].Amount.Equal(decimal.RequireFromString("2500")) {
		t.Errorf("expected thousands separator to be stripped, got %s", ds.LedgerEntries[0].Amount)
	}
	if !strings.Contains(ds.Source, "statement.csv") || !strings.Contains(ds.Source, "ledger.csv") {
		t.Errorf("expected source to name both files, got %q", ds.Source)
	}
}

func TestLoader_LoadCSVWithAliases(t *testing.T) {
	dir := t.TempDir()
	statement := writeFile(t, dir, "extrato.csv",
		"Codigo;Data;Historico;Valor\nE1;2024-02-01;Deposito;120,50\n")
	ledger := writeFile(t, dir, "lancamentos.csv",
		"Codigo;Data;Historico;Valor;Tipo\nR1;2024-02-01;Venda;120.50;INCOME\n")

	loader := newTestLoader(t, &CSVConfig{
		Delimiter: ';',
		HasHeader: true,
		ColumnAliases: map[string]string{
			"id":          "Codigo",
			"date":        "data",
			"description": "Historico",
			"amount":      "Valor",
			"type":        "Tipo",
		},
	})

	ds, err := loader.LoadCSV(context.Background(), statement, ledger)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}

	// the comma is read as a thousands separator
	if got := ds.StatementItems[0].Amount; !got.Equal(decimal.RequireFromString("12050")) {
		t.Errorf("amount = %s, want 12050", got)
	}
	if ds.LedgerEntries[0].ID != "R1" || ds.LedgerEntries[0].Type != models.EntryIncome {
		t.Errorf("unexpected ledger entry %s", ds.LedgerEntries[0])
	}
}

func TestLoader_LoadCSVWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	statement := writeFile(t, dir, "statement.csv", "S1,2024-02-01,Deposito,10.00,CREDIT\n")
	ledger := writeFile(t, dir, "ledger.csv", "L1,2024-02-01,Venda,10.00,INCOME,,sales\n")

	loader := newTestLoader(t, &CSVConfig{Delimiter: ',', HasHeader: false})

	ds, err := loader.LoadCSV(context.Background(), statement, ledger)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if ds.LedgerEntries[0].Category != "sales" {
		t.Errorf("expected category sales, got %q", ds.LedgerEntries[0].Category)
	}
	if ds.LedgerEntries[0].Status != models.StatusPending {
		t.Errorf("expected empty status to default to PENDING, got %s", ds.LedgerEntries[0].Status)
	}
}

func TestLoader_LoadCSVErrors(t *testing.T) {
	dir := t.TempDir()
	goodLedger := writeFile(t, dir, "ledger.csv", "id,date,amount,type\nL1,2024-01-01,1.00,INCOME\n")

	t.Run("missing column", func(t *testing.T) {
		statement := writeFile(t, dir, "no_amount.csv", "id,date\nS1,2024-01-01\n")
		_, err := newTestLoader(t, nil).LoadCSV(context.Background(), statement, goodLedger)

		recErr, ok := recerrors.AsReconcilerError(err)
		if !ok || recErr.Code != recerrors.CodeMissingColumn {
			t.Fatalf("expected missing column error, got %v", err)
		}
		if !strings.Contains(recErr.Message, "amount") {
			t.Errorf("expected message to name the column, got %q", recErr.Message)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		statement := writeFile(t, dir, "empty.csv", "")
		_, err := newTestLoader(t, nil).LoadCSV(context.Background(), statement, goodLedger)

		recErr, ok := recerrors.AsReconcilerError(err)
		if !ok || recErr.Code != recerrors.CodeInvalidFormat {
			t.Fatalf("expected invalid format error, got %v", err)
		}
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		statement := writeFile(t, dir, "latin1.csv", "id,date,amount\nS1,2024-01-01,1.00,Cr\xe9dito\n")
		_, err := newTestLoader(t, nil).LoadCSV(context.Background(), statement, goodLedger)

		recErr, ok := recerrors.AsReconcilerError(err)
		if !ok || recErr.Code != recerrors.CodeInvalidFormat {
			t.Fatalf("expected encoding error, got %v", err)
		}
		if recErr.Context["line"] != 2 {
			t.Errorf("expected line 2 in context, got %v", recErr.Context["line"])
		}
	})

	t.Run("bad record carries its line", func(t *testing.T) {
		statement := writeFile(t, dir, "bad_date.csv", "id,date,amount\nS1,2024-01-01,1.00\nS2,01/02/2024,2.00\n")
		_, err := newTestLoader(t, nil).LoadCSV(context.Background(), statement, goodLedger)

		summary, ok := recerrors.AsErrorSummary(err)
		if !ok || summary.Total != 1 {
			t.Fatalf("expected a single record error, got %v", err)
		}
		if summary.Errors[0].Context["line"] != 3 || summary.Errors[0].Context["record"] != 1 {
			t.Errorf("unexpected error context %v", summary.Errors[0].Context)
		}
	})
}

func TestCSVConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *CSVConfig
		wantErr bool
	}{
		{"default", DefaultCSVConfig(), false},
		{"semicolon", &CSVConfig{Delimiter: ';'}, false},
		{"tab", &CSVConfig{Delimiter: '\t'}, false},
		{"zero delimiter", &CSVConfig{}, true},
		{"quote delimiter", &CSVConfig{Delimiter: '"'}, true},
		{"newline delimiter", &CSVConfig{Delimiter: '\n'}, true},
		{"empty alias", &CSVConfig{Delimiter: ',', ColumnAliases: map[string]string{"id": " "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewLoader(&CSVConfig{}, logger.Discard()); err == nil {
		t.Error("NewLoader() should reject an invalid CSV config")
	}
}

func TestDataset_Validate(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("10")

	ds := &Dataset{
		StatementItems: []*models.StatementItem{
			models.NewStatementItem("S1", day, "a", amount, models.MovementCredit),
			models.NewStatementItem("S1", day, "b", amount, models.MovementCredit),
			nil,
		},
		LedgerEntries: []*models.LedgerEntry{
			models.NewLedgerEntry("L1", day, "c", amount.Neg(), models.EntryIncome),
		},
	}

	err := ds.Validate()
	summary, ok := recerrors.AsErrorSummary(err)
	if !ok {
		t.Fatalf("expected ErrorSummary, got %v", err)
	}
	if summary.Total != 3 {
		t.Errorf("expected 3 errors, got %d: %v", summary.Total, summary)
	}
	if !summary.HasCode(recerrors.CodeDuplicateID) {
		t.Error("expected a duplicate identifier error")
	}

	valid := &Dataset{
		StatementItems: ds.StatementItems[:1],
		LedgerEntries:  []*models.LedgerEntry{models.NewLedgerEntry("L1", day, "c", amount, models.EntryIncome)},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid dataset, got %v", err)
	}
}

func TestDataset_Lookups(t *testing.T) {
	loader := newTestLoader(t, nil)
	ds, err := loader.Load(context.Background(), filepath.Join("testdata", "session.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	item, ok := ds.StatementItem("S3")
	if !ok || item.ID != "S3" {
		t.Errorf("StatementItem(S3) = %v, %v", item, ok)
	}
	if _, ok := ds.StatementItem("missing"); ok {
		t.Error("StatementItem(missing) should not be found")
	}

	if got := len(ds.PendingStatementItems()); got != 4 {
		t.Errorf("expected 4 pending statement items, got %d", got)
	}
	if got := len(ds.PendingLedgerEntries()); got != 4 {
		t.Errorf("expected 4 pending ledger entries, got %d", got)
	}
}

func TestCSVTable_IndexPrefersFirstCaseInsensitiveHeader(t *testing.T) {
	table := &csvTable{headers: []string{"ID", "AMOUNT", "Amount", "date"}}
	table.headerMap = make(map[string]int, len(table.headers))
	for i, header := range table.headers {
		table.headerMap[header] = i
	}

	for i := 0; i < 20; i++ {
		if got := table.index("amount"); got != 1 {
			t.Fatalf("index(amount) = %d, want 1", got)
		}
	}
	if got := table.index("date"); got != 3 {
		t.Errorf("index(date) = %d, want 3", got)
	}
	if got := table.index("category"); got != -1 {
		t.Errorf("index(category) = %d, want -1", got)
	}
}

func TestLoader_DecimalCommaAmounts(t *testing.T) {
	loader := newTestLoader(t, nil)
	doc := `{"statement_items":[{"id":"S1","date":"2024-01-01","amount":"R$ 1.234,56","type":"CREDIT"}],
"ledger_entries":[{"id":"L1","date":"2024-01-01","amount":"2500,00","type":"INCOME"},
{"id":"L2","date":"2024-01-01","amount":"1,234","type":"INCOME"}]}`

	_, err := loader.Decode(context.Background(), strings.NewReader(doc), FormatJSON, "inline")
	summary, ok := recerrors.AsErrorSummary(err)
	if !ok || summary.Total != 1 {
		t.Fatalf("expected one error for the ambiguous amount, got %v", err)
	}
	if summary.Errors[0].Context["field"] != "amount" {
		t.Errorf("expected the amount field to be reported, got %v", summary.Errors[0].Context)
	}

	doc = `{"statement_items":[{"id":"S1","date":"2024-01-01","amount":"R$ 1.234,56","type":"CREDIT"}],
"ledger_entries":[{"id":"L1","date":"2024-01-01","amount":"2500,00","type":"INCOME"}]}`
	ds, err := loader.Decode(context.Background(), strings.NewReader(doc), FormatJSON, "inline")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := ds.StatementItems[0].Amount; !got.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("statement amount = %s, want 1234.56", got)
	}
	if got := ds.LedgerEntries[0].Amount; !got.Equal(decimal.RequireFromString("2500")) {
		t.Errorf("ledger amount = %s, want 2500", got)
	}
}
