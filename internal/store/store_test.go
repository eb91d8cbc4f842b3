package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/db/dbtest"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"gorm.io/gorm"
)

func createTemplate(t *testing.T, s *TemplateStore, name string) *models.Template {
	t.Helper()
	tmpl := &models.Template{Name: name, Type: "LETTER", Body: "Hello {{name}}", Version: 1, IsActive: true}
	if err := s.Create(context.Background(), tmpl); err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tmpl
}

func createChainDoc(t *testing.T, s *DocumentStore, name string, tmplID *uuid.UUID) *models.Document {
	t.Helper()
	ctx := context.Background()
	chain := &models.DocumentChain{Name: name, EntityType: "COMPANY", EntityID: "c1", HeadVersion: 1}
	if err := s.CreateChain(ctx, chain); err != nil {
		t.Fatalf("create chain: %v", err)
	}
	doc := &models.Document{
		ChainID:    chain.ID,
		Name:       name,
		EntityType: "COMPANY",
		EntityID:   "c1",
		TemplateID: tmplID,
		Content:    "body",
		Version:    1,
		Status:     models.DocStatusActive,
	}
	if err := s.Insert(ctx, doc); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	return doc
}

func TestTemplateStore_GetByID_NotFound(t *testing.T) {
	s := NewTemplateStore(dbtest.Open(t))
	_, err := s.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplateStore_IncrementUsageConcurrent(t *testing.T) {
	db := dbtest.Open(t)
	s := NewTemplateStore(db)
	tmpl := createTemplate(t, s, "counter")

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.IncrementUsage(context.Background(), tmpl.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	got, err := s.GetByID(context.Background(), tmpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UsageCount != n {
		t.Errorf("expected usage_count=%d, got %d", n, got.UsageCount)
	}
}

func TestTemplateStore_IncrementUsageMissing(t *testing.T) {
	s := NewTemplateStore(dbtest.Open(t))
	if err := s.IncrementUsage(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplateStore_ListFilters(t *testing.T) {
	s := NewTemplateStore(dbtest.Open(t))
	ctx := context.Background()
	a := createTemplate(t, s, "Alpha contract")
	createTemplate(t, s, "Beta letter")
	createTemplate(t, s, "100% offer")
	if _, err := s.SetActive(ctx, []uuid.UUID{a.ID}, false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	inactive := false
	list, total, err := s.List(ctx, TemplateFilter{IsActive: &inactive})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != a.ID {
		t.Errorf("expected only the archived template, got total=%d list=%v", total, list)
	}

	list, total, err = s.List(ctx, TemplateFilter{Search: "LETTER"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// "LETTER" matches every row through the type column
	if total != 3 {
		t.Errorf("expected 3 type matches, got %d", total)
	}

	list, total, err = s.List(ctx, TemplateFilter{Search: "100%"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || list[0].Name != "100% offer" {
		t.Errorf("expected literal %% match, got total=%d", total)
	}

	list, _, err = s.List(ctx, TemplateFilter{Paging: Paging{Page: 1, Limit: 2}, SortBy: "name", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "100% offer" {
		t.Errorf("unexpected page: %v", list)
	}
}

func TestDocumentStore_CountByTemplate(t *testing.T) {
	db := dbtest.Open(t)
	ts := NewTemplateStore(db)
	ds := NewDocumentStore(db)
	ctx := context.Background()

	tmpl := createTemplate(t, ts, "used")
	other := createTemplate(t, ts, "unused")
	createChainDoc(t, ds, "a", &tmpl.ID)
	createChainDoc(t, ds, "b", &tmpl.ID)
	createChainDoc(t, ds, "c", nil)

	n, err := ds.CountByTemplateID(ctx, tmpl.ID)
	if err != nil || n != 2 {
		t.Errorf("expected 2 documents for template, got %d (err %v)", n, err)
	}
	n, err = ds.CountByTemplateID(ctx, other.ID)
	if err != nil || n != 0 {
		t.Errorf("expected 0 documents for unused template, got %d (err %v)", n, err)
	}
}

func TestDocumentStore_AdvanceHeadIsConditional(t *testing.T) {
	ds := NewDocumentStore(dbtest.Open(t))
	ctx := context.Background()
	doc := createChainDoc(t, ds, "chain", nil)

	ok, err := ds.AdvanceHead(ctx, doc.ChainID, 1)
	if err != nil || !ok {
		t.Fatalf("expected first advance to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = ds.AdvanceHead(ctx, doc.ChainID, 1)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if ok {
		t.Errorf("expected stale advance to be rejected")
	}

	chain, err := ds.GetChain(ctx, doc.ChainID)
	if err != nil {
		t.Fatalf("get chain: %v", err)
	}
	if chain.HeadVersion != 2 {
		t.Errorf("expected head 2, got %d", chain.HeadVersion)
	}
}

func TestDocumentStore_UniqueVersionPerChain(t *testing.T) {
	ds := NewDocumentStore(dbtest.Open(t))
	ctx := context.Background()
	doc := createChainDoc(t, ds, "dup", nil)

	clash := &models.Document{
		ChainID: doc.ChainID, Name: doc.Name, EntityType: doc.EntityType, EntityID: doc.EntityID,
		Version: 1, Status: models.DocStatusDraft,
	}
	if err := ds.Insert(ctx, clash); err == nil {
		t.Fatalf("expected unique (chain_id, version) violation")
	}
}

func TestDocumentStore_UpdateStatusGuardsSource(t *testing.T) {
	ds := NewDocumentStore(dbtest.Open(t))
	ctx := context.Background()
	doc := createChainDoc(t, ds, "status", nil) // ACTIVE

	changed, err := ds.UpdateStatus(ctx, doc.ID, []models.DocumentStatus{models.DocStatusDraft}, models.DocStatusActive)
	if err != nil || changed {
		t.Errorf("expected no change from non-matching status, changed=%v err=%v", changed, err)
	}
	changed, err = ds.UpdateStatus(ctx, doc.ID, []models.DocumentStatus{models.DocStatusActive}, models.DocStatusArchived)
	if err != nil || !changed {
		t.Errorf("expected archive to apply, changed=%v err=%v", changed, err)
	}
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := dbtest.Open(t)
	ts := NewTemplateStore(db)
	tx := NewTransactor(db)
	ctx := context.Background()
	boom := errors.New("boom")

	var id uuid.UUID
	err := tx.ExecTx(ctx, func(ctx context.Context) error {
		if !InTx(ctx) {
			t.Errorf("expected transaction in context")
		}
		tmpl := &models.Template{Name: "rolled back", Body: "x"}
		if err := ts.Create(ctx, tmpl); err != nil {
			return err
		}
		id = tmpl.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := ts.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected rolled back template to be gone, got %v", err)
	}
}

func TestTransactor_RollsBackOnCancel(t *testing.T) {
	db := dbtest.Open(t)
	ts := NewTemplateStore(db)
	tx := NewTransactor(db)

	ctx, cancel := context.WithCancel(context.Background())
	var id uuid.UUID
	err := tx.ExecTx(ctx, func(ctx context.Context) error {
		tmpl := &models.Template{Name: "cancelled", Body: "x"}
		if err := ts.Create(ctx, tmpl); err != nil {
			return err
		}
		id = tmpl.ID
		cancel()
		return ctx.Err()
	})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	var count int64
	db.Model(&models.Template{}).Where("id = ?", id).Count(&count)
	if count != 0 {
		t.Errorf("expected no template after cancelled transaction")
	}
}

func TestConn_UsesTransaction(t *testing.T) {
	db := dbtest.Open(t)
	if Conn(context.Background(), db).Statement.ConnPool != db.Statement.ConnPool {
		t.Errorf("expected plain db outside a transaction")
	}
	err := NewTransactor(db).ExecTx(context.Background(), func(ctx context.Context) error {
		if _, ok := Conn(ctx, db).Statement.ConnPool.(gorm.TxCommitter); !ok {
			t.Errorf("expected transaction connection inside ExecTx")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("exec tx: %v", err)
	}
}
