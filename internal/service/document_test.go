package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tahakubilay/Full-CRM-Claude/internal/audit"
	"github.com/tahakubilay/Full-CRM-Claude/internal/config"
	"github.com/tahakubilay/Full-CRM-Claude/internal/db/dbtest"
	"github.com/tahakubilay/Full-CRM-Claude/internal/entity"
	"github.com/tahakubilay/Full-CRM-Claude/internal/metrics"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"github.com/tahakubilay/Full-CRM-Claude/internal/store"
	"golang.org/x/sync/errgroup"
)

func TestGenerateFromTemplate_EndToEnd(t *testing.T) {
	db := dbtest.Open(t)
	company := models.Company{CompanyName: "Acme", TaxNumber: "42"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	sink := &memorySink{}
	svcs, err := NewServices(db, entity.NewGormProvider(db), audit.Multi(sink, audit.NewDBSink(db)),
		config.DocgenConfig{MaxRetries: 3}, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new services: %v", err)
	}
	actor := uuid.New()
	ctx := context.Background()

	tpl, err := svcs.Templates.Create(ctx, CreateTemplateRequest{
		Name: "Invoice",
		Type: "INVOICE",
		Body: "Invoice for {{company}} on {{current_year}}",
	}, actor)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	doc, err := svcs.Documents.GenerateFromTemplate(ctx, GenerateRequest{
		TemplateID: tpl.ID,
		EntityType: "COMPANY",
		EntityID:   company.ID.String(),
		Data:       map[string]any{},
	}, actor)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if doc.Content != "Invoice for Acme on 2024" {
		t.Errorf("unexpected content %q", doc.Content)
	}
	if doc.Version != 1 || doc.Status != models.DocStatusActive {
		t.Errorf("expected v1 ACTIVE, got v%d %s", doc.Version, doc.Status)
	}
	if doc.TemplateID == nil || *doc.TemplateID != tpl.ID {
		t.Errorf("expected template link %s, got %v", tpl.ID, doc.TemplateID)
	}
	if doc.Type != "INVOICE" || doc.EntityType != "COMPANY" {
		t.Errorf("unexpected type/entity: %s %s", doc.Type, doc.EntityType)
	}
	if got := usageCount(t, db, tpl.ID); got != 1 {
		t.Errorf("expected usage 1, got %d", got)
	}

	var activity []models.Activity
	db.Where("entity_type = ? AND entity_id = ?", audit.EntityDocument, doc.ID.String()).Find(&activity)
	if len(activity) != 1 || activity[0].Action != audit.ActionCreate || activity[0].PerformedBy != actor {
		t.Errorf("expected one CREATE activity by the actor, got %+v", activity)
	}
}

func TestGenerateFromTemplate_DefaultsAndMetadata(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Offer", "Dear {{company}}, tax {{taxNumber}}, amount {{amount}}")

	doc := generate(t, env, tpl.ID, map[string]any{"amount": 150, "company": "Ignored"})
	if doc.Name != "Offer - 05.03.2024" {
		t.Errorf("unexpected default name %q", doc.Name)
	}
	if doc.Content != "Dear Acme, tax 123, amount 150" {
		t.Errorf("unexpected content %q", doc.Content)
	}
	if doc.DocumentDate == nil || !doc.DocumentDate.Equal(fixedNow) {
		t.Errorf("expected document date %v, got %v", fixedNow, doc.DocumentDate)
	}

	stored, err := env.docs.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Metadata["amount"] != float64(150) || stored.Metadata["company"] != "Ignored" {
		t.Errorf("metadata not stored as given: %v", stored.Metadata)
	}
	if stored.Template == nil || stored.Template.Name != "Offer" {
		t.Errorf("expected template summary, got %+v", stored.Template)
	}

	named := generate(t, env, tpl.ID, map[string]any{"name": "Offer for Acme"})
	if named.Name != "Offer for Acme" {
		t.Errorf("expected data name, got %q", named.Name)
	}
}

func TestGenerateFromTemplate_NameSources(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Offer", "{{company}}")

	cases := []struct {
		name    string
		reqName string
		data    map[string]any
		want    string
	}{
		{"data name wins", "Request name", map[string]any{"name": "Data name"}, "Data name"},
		{"request name when data has none", "Request name", nil, "Request name"},
		{"empty data name falls through", "Request name", map[string]any{"name": ""}, "Request name"},
		{"default", "", nil, "Offer - 05.03.2024"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := env.docs.GenerateFromTemplate(context.Background(), GenerateRequest{
				TemplateID: tpl.ID, EntityType: "COMPANY", EntityID: acmeID,
				Data: tc.data, Name: tc.reqName,
			}, env.actor)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if doc.Name != tc.want {
				t.Errorf("expected name %q, got %q", tc.want, doc.Name)
			}
		})
	}
}

func TestGenerateFromTemplate_CallerFillsEmptyEntityValue(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Tax", "{{company}}: {{taxNumber}}")

	doc, err := env.docs.GenerateFromTemplate(context.Background(), GenerateRequest{
		TemplateID: tpl.ID,
		EntityType: "company",
		EntityID:   globexID,
		Data:       map[string]any{"taxNumber": "999"},
	}, env.actor)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Content != "Globex: 999" {
		t.Errorf("unexpected content %q", doc.Content)
	}
	if doc.EntityType != "COMPANY" {
		t.Errorf("expected normalized entity type, got %q", doc.EntityType)
	}
}

func TestGenerateFromTemplate_FailsFastWithoutWrites(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "x")
	ctx := context.Background()

	_, err := env.docs.GenerateFromTemplate(ctx, GenerateRequest{
		TemplateID: uuid.New(), EntityType: "COMPANY", EntityID: acmeID,
	}, env.actor)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "template" || !errors.Is(err, ErrNotFound) {
		t.Errorf("expected template NotFoundError, got %v", err)
	}

	_, err = env.docs.GenerateFromTemplate(ctx, GenerateRequest{
		TemplateID: tpl.ID, EntityType: "INVESTMENT", EntityID: acmeID,
	}, env.actor)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for entity type, got %v", err)
	}

	_, err = env.docs.GenerateFromTemplate(ctx, GenerateRequest{
		TemplateID: tpl.ID, EntityType: "COMPANY", EntityID: "missing",
	}, env.actor)
	if !errors.As(err, &nf) || nf.Resource != "entity" {
		t.Errorf("expected entity NotFoundError, got %v", err)
	}

	if n := countDocuments(t, env.db); n != 0 {
		t.Errorf("expected no documents, got %d", n)
	}
	if got := usageCount(t, env.db, tpl.ID); got != 0 {
		t.Errorf("expected usage 0, got %d", got)
	}
}

func TestGenerateFromTemplate_InactiveTemplateStillGenerates(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Old", "{{company}}")
	if _, err := env.tpls.Archive(context.Background(), tpl.ID, env.actor); err != nil {
		t.Fatalf("archive: %v", err)
	}
	doc := generate(t, env, tpl.ID, nil)
	if doc.Content != "Acme" {
		t.Errorf("unexpected content %q", doc.Content)
	}
}

// failingUsage fails every usage increment.
type failingUsage struct {
	TemplateRepository
}

func (failingUsage) IncrementUsage(context.Context, uuid.UUID) error {
	return errors.New("counter unavailable")
}

func TestGenerateFromTemplate_RollsBackWhenUsageFails(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	env.docs.templates = failingUsage{env.docs.templates}

	_, err := env.docs.GenerateFromTemplate(context.Background(), GenerateRequest{
		TemplateID: tpl.ID, EntityType: "COMPANY", EntityID: acmeID,
	}, env.actor)
	if err == nil {
		t.Fatal("expected error")
	}
	if n := countDocuments(t, env.db); n != 0 {
		t.Errorf("document must not survive a failed usage increment, got %d", n)
	}
	var chains int64
	env.db.Model(&models.DocumentChain{}).Count(&chains)
	if chains != 0 {
		t.Errorf("expected no chains, got %d", chains)
	}
}

func TestGenerateFromTemplate_CancelledContext(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.docs.GenerateFromTemplate(ctx, GenerateRequest{
		TemplateID: tpl.ID, EntityType: "COMPANY", EntityID: acmeID,
	}, env.actor); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if n := countDocuments(t, env.db); n != 0 {
		t.Errorf("expected no documents, got %d", n)
	}
	if got := usageCount(t, env.db, tpl.ID); got != 0 {
		t.Errorf("expected usage 0, got %d", got)
	}
}

func TestGenerateFromTemplate_ConcurrentUsageIsExact(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	const k = 20

	var g errgroup.Group
	for i := 0; i < k; i++ {
		g.Go(func() error {
			_, err := env.docs.GenerateFromTemplate(context.Background(), GenerateRequest{
				TemplateID: tpl.ID, EntityType: "COMPANY", EntityID: acmeID,
			}, env.actor)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if got := usageCount(t, env.db, tpl.ID); got != k {
		t.Errorf("expected usage %d, got %d", k, got)
	}
	if n := countDocuments(t, env.db); n != k {
		t.Errorf("expected %d documents, got %d", k, n)
	}
}

func TestCreateVersion_Monotonic(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, map[string]any{"k": "v"})
	ctx := context.Background()

	head := first
	for i := 0; i < 4; i++ {
		next, err := env.docs.CreateVersion(ctx, head.ID, env.actor)
		if err != nil {
			t.Fatalf("create version %d: %v", i+2, err)
		}
		if next.Version != head.Version+1 {
			t.Fatalf("expected version %d, got %d", head.Version+1, next.Version)
		}
		if next.Status != models.DocStatusDraft {
			t.Errorf("new versions start as DRAFT, got %s", next.Status)
		}
		if next.Content != first.Content || next.Name != first.Name || next.EntityID != first.EntityID {
			t.Errorf("content-bearing fields not copied: %+v", next)
		}
		if next.Metadata["k"] != "v" {
			t.Errorf("metadata not copied: %v", next.Metadata)
		}
		head = next
	}

	versions, err := env.docs.GetVersions(ctx, first.ID)
	if err != nil {
		t.Fatalf("get versions: %v", err)
	}
	if len(versions) != 5 {
		t.Fatalf("expected 5 versions, got %d", len(versions))
	}
	for i, d := range versions {
		if d.Version != 5-i {
			t.Errorf("versions[%d] = v%d, want v%d", i, d.Version, 5-i)
		}
	}

	if got := usageCount(t, env.db, tpl.ID); got != 1 {
		t.Errorf("versioning must not count as usage, got %d", got)
	}
	history, err := env.docs.History(ctx, first.Name, "company", acmeID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 5 || history[0].Version != 5 {
		t.Errorf("unexpected history %d items", len(history))
	}
}

func TestCreateVersion_FromOlderVersionAppendsAtHead(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, nil)
	ctx := context.Background()

	if _, err := env.docs.CreateVersion(ctx, first.ID, env.actor); err != nil {
		t.Fatalf("create version: %v", err)
	}
	third, err := env.docs.CreateVersion(ctx, first.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if third.Version != 3 {
		t.Errorf("expected version 3, got %d", third.Version)
	}
}

func TestCreateVersion_ConcurrentNoCollisions(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, nil)
	const n = 10

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := env.docs.CreateVersion(context.Background(), first.ID, env.actor)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("create version: %v", err)
	}

	versions, err := env.docs.GetVersions(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("get versions: %v", err)
	}
	var got []int
	for _, d := range versions {
		got = append(got, d.Version)
	}
	sort.Ints(got)
	if len(got) != n+1 {
		t.Fatalf("expected %d versions, got %v", n+1, got)
	}
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("versions not contiguous: %v", got)
		}
	}
}

// racingHeads loses the first `losses` compare-and-swaps on the chain head.
type racingHeads struct {
	DocumentRepository
	losses int
	calls  int
}

func (r *racingHeads) AdvanceHead(ctx context.Context, chainID uuid.UUID, expected int) (bool, error) {
	r.calls++
	if r.calls <= r.losses {
		return false, nil
	}
	return r.DocumentRepository.AdvanceHead(ctx, chainID, expected)
}

func TestCreateVersion_RetriesLostRace(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, nil)

	before := testutil.ToFloat64(metrics.ConflictRetries.WithLabelValues("create_version"))
	racing := &racingHeads{DocumentRepository: env.docs.documents, losses: 2}
	env.docs.documents = racing

	doc, err := env.docs.CreateVersion(context.Background(), first.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if doc.Version != 2 || racing.calls != 3 {
		t.Errorf("expected v2 after 3 attempts, got v%d after %d", doc.Version, racing.calls)
	}
	if got := testutil.ToFloat64(metrics.ConflictRetries.WithLabelValues("create_version")) - before; got != 2 {
		t.Errorf("expected 2 retries counted, got %v", got)
	}
}

func TestCreateVersion_GivesUpAfterMaxRetries(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, nil)
	env.docs.documents = &racingHeads{DocumentRepository: env.docs.documents, losses: 100}

	_, err := env.docs.CreateVersion(context.Background(), first.ID, env.actor)
	var terr *TransientConflictError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientConflictError, got %v", err)
	}
	if terr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", terr.Attempts)
	}
	if n := countDocuments(t, env.db); n != 1 {
		t.Errorf("a lost race must not leave a row behind, got %d documents", n)
	}
}

func TestCreateVersion_NotFound(t *testing.T) {
	env := testSetup(t)
	_, err := env.docs.CreateVersion(context.Background(), uuid.New(), env.actor)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "document" {
		t.Errorf("expected document NotFoundError, got %v", err)
	}
	if _, err := env.docs.GetVersions(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from GetVersions, got %v", err)
	}
}

func TestCreateVersion_AuditsVersionNumber(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, nil)
	if _, err := env.docs.CreateVersion(context.Background(), first.ID, env.actor); err != nil {
		t.Fatalf("create version: %v", err)
	}
	last := env.sink.entries[len(env.sink.entries)-1]
	if last.Action != audit.ActionCreateVersion || last.Details["version"] != 2 {
		t.Errorf("unexpected audit entry %+v", last)
	}
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	env.sink.err = errors.New("sink down")
	before := testutil.ToFloat64(metrics.AuditFailures.WithLabelValues("custom"))

	doc := generate(t, env, tpl.ID, nil)
	if doc == nil {
		t.Fatal("expected document")
	}
	if got := testutil.ToFloat64(metrics.AuditFailures.WithLabelValues("custom")) - before; got != 1 {
		t.Errorf("expected one audit failure counted, got %v", got)
	}
}

func TestTransition_StateMachine(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, nil)
	ctx := context.Background()

	draft, err := env.docs.CreateVersion(ctx, first.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if _, err := env.docs.Activate(ctx, draft.ID, env.actor); err != nil {
		t.Fatalf("activate draft: %v", err)
	}
	before := len(env.sink.actions())
	again, err := env.docs.Activate(ctx, draft.ID, env.actor)
	if err != nil {
		t.Fatalf("activating an active document should be a no-op: %v", err)
	}
	if again.Status != models.DocStatusActive {
		t.Errorf("expected ACTIVE, got %s", again.Status)
	}
	if after := len(env.sink.actions()); after != before {
		t.Errorf("no-op transition recorded %d activity entries", after-before)
	}
	archived, err := env.docs.Archive(ctx, draft.ID, env.actor)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.Status != models.DocStatusArchived {
		t.Errorf("expected ARCHIVED, got %s", archived.Status)
	}

	second, err := env.docs.CreateVersion(ctx, draft.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	same, err := env.docs.Transition(ctx, second.ID, models.DocStatusDraft, env.actor)
	if err != nil || same.Status != models.DocStatusDraft {
		t.Errorf("DRAFT -> DRAFT should be a no-op, got %v, %v", same, err)
	}

	_, err = env.docs.Transition(ctx, draft.ID, models.DocStatusDraft, env.actor)
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Errorf("ARCHIVED is terminal, got %v", err)
	}
	_, err = env.docs.Transition(ctx, draft.ID, "PUBLISHED", env.actor)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown status, got %v", err)
	}
}

func TestUpdate_ContentOnlyWhileDraft(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	active := generate(t, env, tpl.ID, nil)
	ctx := context.Background()

	content := "rewritten"
	_, err := env.docs.Update(ctx, active.ID, UpdateDocumentRequest{Content: &content}, env.actor)
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError editing ACTIVE content, got %v", err)
	}

	draft, err := env.docs.CreateVersion(ctx, active.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	name := "Renamed"
	updated, err := env.docs.Update(ctx, draft.ID, UpdateDocumentRequest{
		Content:  &content,
		Name:     &name,
		Metadata: map[string]any{"note": "x"},
	}, env.actor)
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.Content != content || updated.Name != name || updated.Metadata["note"] != "x" {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.ChainID != active.ChainID {
		t.Error("renaming must keep the version chain")
	}

	versions, err := env.docs.GetVersions(ctx, active.ID)
	if err != nil || len(versions) != 2 {
		t.Errorf("renamed version must stay in the chain, got %d (%v)", len(versions), err)
	}

	blank := ""
	if _, err := env.docs.Update(ctx, draft.ID, UpdateDocumentRequest{Name: &blank}, env.actor); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestDuplicate_StartsNewChain(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	src := generate(t, env, tpl.ID, nil)
	ctx := context.Background()
	if _, err := env.docs.CreateVersion(ctx, src.ID, env.actor); err != nil {
		t.Fatalf("create version: %v", err)
	}

	dup, err := env.docs.Duplicate(ctx, src.ID, env.actor)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.Name != src.Name+" (Copy)" || dup.Version != 1 || dup.Status != models.DocStatusDraft {
		t.Errorf("unexpected duplicate %+v", dup)
	}
	if dup.ChainID == src.ChainID {
		t.Error("duplicate must start its own chain")
	}
	versions, _ := env.docs.GetVersions(ctx, dup.ID)
	if len(versions) != 1 {
		t.Errorf("expected a single version, got %d", len(versions))
	}
}

func TestDelete_OnlyHead(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	first := generate(t, env, tpl.ID, nil)
	ctx := context.Background()
	second, err := env.docs.CreateVersion(ctx, first.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}

	err = env.docs.Delete(ctx, first.ID, env.actor)
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError deleting a non-head version, got %v", err)
	}

	if err := env.docs.Delete(ctx, second.ID, env.actor); err != nil {
		t.Fatalf("delete head: %v", err)
	}
	third, err := env.docs.CreateVersion(ctx, first.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if third.Version != 2 {
		t.Errorf("expected the freed version number 2 to be reused, got %d", third.Version)
	}

	if err := env.docs.Delete(ctx, third.ID, env.actor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.docs.Delete(ctx, first.ID, env.actor); err != nil {
		t.Fatalf("delete last version: %v", err)
	}
	var chains int64
	env.db.Model(&models.DocumentChain{}).Count(&chains)
	if chains != 0 {
		t.Errorf("expected the empty chain to be removed, got %d", chains)
	}
	if err := env.docs.Delete(ctx, first.ID, env.actor); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList_Filters(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	ctx := context.Background()
	a := generate(t, env, tpl.ID, map[string]any{"name": "Alpha"})
	generate(t, env, tpl.ID, map[string]any{"name": "Beta"})
	if _, err := env.docs.CreateVersion(ctx, a.ID, env.actor); err != nil {
		t.Fatalf("create version: %v", err)
	}

	page, err := env.docs.List(ctx, store.DocumentFilter{Status: models.DocStatusDraft})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].Name != "Alpha" {
		t.Errorf("unexpected drafts: %+v", page)
	}

	page, err = env.docs.List(ctx, store.DocumentFilter{Search: "bet", EntityType: "company"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.TotalPages != 1 || page.Limit != 10 {
		t.Errorf("unexpected search page: total=%d pages=%d limit=%d", page.Total, page.TotalPages, page.Limit)
	}

	if _, err := env.docs.List(ctx, store.DocumentFilter{Status: "LOST"}); err == nil {
		t.Error("expected validation error for unknown status")
	}
}

func TestCreate_HandAuthoredAndFromTemplate(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "Raw {{company}}")
	ctx := context.Background()

	doc, err := env.docs.Create(ctx, CreateDocumentRequest{
		Name: "Note", EntityType: "PERSON", EntityID: "p1", Content: "hello",
	}, env.actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.Status != models.DocStatusDraft || doc.Version != 1 {
		t.Errorf("expected DRAFT v1, got %s v%d", doc.Status, doc.Version)
	}

	fromTpl, err := env.docs.Create(ctx, CreateDocumentRequest{
		Name: "Copy", EntityType: "COMPANY", EntityID: acmeID, TemplateID: &tpl.ID,
	}, env.actor)
	if err != nil {
		t.Fatalf("create from template: %v", err)
	}
	if fromTpl.Content != "Raw {{company}}" || fromTpl.Type != "INVOICE" {
		t.Errorf("expected raw template body, got %q (%s)", fromTpl.Content, fromTpl.Type)
	}
	if got := usageCount(t, env.db, tpl.ID); got != 1 {
		t.Errorf("expected usage 1, got %d", got)
	}

	_, err = env.docs.Create(ctx, CreateDocumentRequest{EntityType: "COMPANY", EntityID: acmeID}, env.actor)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for missing name, got %v", err)
	}
	_, err = env.docs.Create(ctx, CreateDocumentRequest{Name: "x", EntityType: "COMPANY", EntityID: acmeID, Status: "LOST"}, env.actor)
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for status, got %v", err)
	}
}

func TestDocumentBulkAction(t *testing.T) {
	env := testSetup(t)
	tpl := createTemplate(t, env, "Invoice", "{{company}}")
	ctx := context.Background()
	a := generate(t, env, tpl.ID, nil)
	b, err := env.docs.CreateVersion(ctx, a.ID, env.actor)
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	c := generate(t, env, tpl.ID, nil)

	if _, err := env.docs.BulkAction(ctx, "explode", []uuid.UUID{a.ID}, env.actor); err == nil {
		t.Error("expected error for unknown action")
	}

	res, err := env.docs.BulkAction(ctx, "activate", []uuid.UUID{a.ID, b.ID, uuid.New()}, env.actor)
	if err != nil {
		t.Fatalf("bulk activate: %v", err)
	}
	if res.Affected != 1 || len(res.Skipped) != 2 {
		t.Errorf("only the draft should activate: %+v", res)
	}

	res, err = env.docs.BulkAction(ctx, "archive", []uuid.UUID{a.ID, c.ID}, env.actor)
	if err != nil {
		t.Fatalf("bulk archive: %v", err)
	}
	if res.Affected != 2 {
		t.Errorf("expected 2 archived, got %+v", res)
	}

	res, err = env.docs.BulkAction(ctx, "delete", []uuid.UUID{a.ID, b.ID, c.ID}, env.actor)
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if res.Affected != 3 || len(res.Skipped) != 0 {
		t.Errorf("expected whole chains deleted head first, got %+v", res)
	}
	if n := countDocuments(t, env.db); n != 0 {
		t.Errorf("expected no documents left, got %d", n)
	}
}
