package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/config"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/review"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/search"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/store"
)

type fakeStore struct {
	mu sync.Mutex

	properties map[string]store.Property
	blobs      map[string]json.RawMessage
	saveCount  int

	listPropertiesFn    func(context.Context) ([]store.Property, error)
	getPropertyFn       func(context.Context, string) (store.Property, error)
	loadReviewStateFn   func(context.Context, string) (json.RawMessage, error)
	saveReviewStateFn   func(context.Context, string, json.RawMessage) error
	updateFieldValuesFn func(context.Context, string, map[string]any) error
	pingFn              func(context.Context) error
}

func newFakeStore(properties ...store.Property) *fakeStore {
	fs := &fakeStore{
		properties: make(map[string]store.Property),
		blobs:      make(map[string]json.RawMessage),
	}
	for _, prop := range properties {
		fs.properties[prop.ID] = prop
	}
	return fs
}

func (f *fakeStore) ListProperties(ctx context.Context) ([]store.Property, error) {
	if f.listPropertiesFn != nil {
		return f.listPropertiesFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Property, 0, len(f.properties))
	for _, prop := range f.properties {
		prop.ReviewState = f.blobs[prop.ID]
		items = append(items, prop)
	}
	return items, nil
}

func (f *fakeStore) GetProperty(ctx context.Context, propertyID string) (store.Property, error) {
	if f.getPropertyFn != nil {
		return f.getPropertyFn(ctx, propertyID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prop, ok := f.properties[propertyID]
	if !ok {
		return store.Property{}, sql.ErrNoRows
	}
	prop.ReviewState = f.blobs[propertyID]
	return prop, nil
}

func (f *fakeStore) InsertProperty(ctx context.Context, prop store.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.properties[prop.ID] = prop
	return nil
}

func (f *fakeStore) UpdateFieldValues(ctx context.Context, propertyID string, values map[string]any) error {
	if f.updateFieldValuesFn != nil {
		return f.updateFieldValuesFn(ctx, propertyID, values)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prop, ok := f.properties[propertyID]
	if !ok {
		return sql.ErrNoRows
	}
	prop.FieldValues = values
	f.properties[propertyID] = prop
	return nil
}

func (f *fakeStore) UpdateStage(ctx context.Context, propertyID, stage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prop, ok := f.properties[propertyID]
	if !ok {
		return sql.ErrNoRows
	}
	prop.Stage = stage
	f.properties[propertyID] = prop
	return nil
}

func (f *fakeStore) LoadReviewState(ctx context.Context, propertyID string) (json.RawMessage, error) {
	if f.loadReviewStateFn != nil {
		return f.loadReviewStateFn(ctx, propertyID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blobs[propertyID], nil
}

func (f *fakeStore) SaveReviewState(ctx context.Context, propertyID string, blob json.RawMessage) error {
	if f.saveReviewStateFn != nil {
		return f.saveReviewStateFn(ctx, propertyID, blob)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[propertyID] = blob
	f.saveCount++
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) savedBlob(propertyID string) (json.RawMessage, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blobs[propertyID], f.saveCount
}

type fakeArchive struct {
	mu      sync.Mutex
	commits []string
}

func (f *fakeArchive) CommitState(propertyID string, blob json.RawMessage, author, message string) (store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, message)
	return store.CommitInfo{Hash: "abc1234", Message: message, Author: author}, nil
}

func (f *fakeArchive) History(propertyID string, limit int) ([]store.CommitInfo, error) {
	return nil, nil
}

func (f *fakeArchive) StateAt(propertyID, hash string) (json.RawMessage, error) {
	return nil, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []eventPayload
}

func (f *fakePublisher) PublishReviewUpdate(ctx context.Context, payload eventPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeSearch struct {
	mu         sync.Mutex
	properties []search.PropertyRecord
	comments   []search.CommentRecord
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexProperty(p search.PropertyRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.properties = append(f.properties, p)
}

func (f *fakeSearch) IndexComments(comments []search.CommentRecord, removedIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, comments...)
}

func testProperty() store.Property {
	return store.Property{
		ID:         "prop-1",
		Address:    "Calle Mayor 12",
		PostalCode: "28013",
		City:       "Madrid",
		Stage:      store.StageReview,
		FieldValues: map[string]any{
			"address":     "Calle Mayor 12",
			"postal_code": "28013",
			"city":        "Madrid",
			"surface_m2":  78,
			"rooms":       3,
			"bathrooms":   1,
		},
	}
}

func newTestService(fs *fakeStore) (*Service, *fakeArchive, *fakePublisher) {
	fa := &fakeArchive{}
	fp := &fakePublisher{}
	cfg := config.Config{
		AuthSecret:     "test-secret",
		TokenTTL:       time.Hour,
		ReviewDebounce: 10 * time.Millisecond,
	}
	return New(cfg, fs, fa, &fakeSearch{}, fp, nil), fa, fp
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSetAnswerGeneratesCommentsAndPersists(t *testing.T) {
	fs := newFakeStore(testProperty())
	svc, fa, fp := newTestService(fs)
	session := Session{UserName: "Lucía"}

	isCorrect := false
	view, err := svc.SetAnswer(context.Background(), "prop-1", "legal-documents", &isCorrect, session)
	if err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	if view.Status != review.StatusPendingInformation {
		t.Fatalf("status = %s, want PENDING_INFORMATION", view.Status)
	}
	if !view.SubmitVisible {
		t.Fatal("expected submit to be visible after rejection")
	}

	waitFor(t, func() bool {
		_, count := fs.savedBlob("prop-1")
		return count == 1
	})

	blob, _ := fs.savedBlob("prop-1")
	if !strings.Contains(string(blob), "Falta Documento A\\nFalta Documento B") {
		t.Fatalf("persisted blob missing generated comments: %s", blob)
	}
	if len(fa.commits) != 1 {
		t.Fatalf("expected 1 archive commit, got %d", len(fa.commits))
	}
	if fp.count() != 1 {
		t.Fatalf("expected 1 published event, got %d", fp.count())
	}
}

func TestRapidEditsCoalesceIntoOneSave(t *testing.T) {
	fs := newFakeStore(testProperty())
	svc, _, _ := newTestService(fs)
	session := Session{UserName: "Lucía"}
	ctx := context.Background()

	isCorrect := false
	if _, err := svc.SetAnswer(ctx, "prop-1", "legal-documents", &isCorrect, session); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	if _, err := svc.SetComments(ctx, "prop-1", "legal-documents", "Falta la escritura", session); err != nil {
		t.Fatalf("SetComments() error = %v", err)
	}
	if _, err := svc.SetComments(ctx, "prop-1", "legal-documents", "Falta la escritura original", session); err != nil {
		t.Fatalf("SetComments() error = %v", err)
	}

	waitFor(t, func() bool {
		_, count := fs.savedBlob("prop-1")
		return count > 0
	})
	time.Sleep(50 * time.Millisecond)

	blob, count := fs.savedBlob("prop-1")
	if count != 1 {
		t.Fatalf("expected edits to coalesce into 1 save, got %d", count)
	}
	if !strings.Contains(string(blob), "Falta la escritura original") {
		t.Fatalf("persisted blob missing last edit: %s", blob)
	}
}

func TestSubmitPersistsSynchronously(t *testing.T) {
	fs := newFakeStore(testProperty())
	svc, _, _ := newTestService(fs)
	session := Session{UserName: "Lucía"}
	ctx := context.Background()

	yes := true
	no := false
	for _, sectionID := range review.RequiredSectionIDs() {
		answer := &yes
		if sectionID == "legal-documents" {
			answer = &no
		}
		if _, err := svc.SetAnswer(ctx, "prop-1", sectionID, answer, session); err != nil {
			t.Fatalf("SetAnswer(%s) error = %v", sectionID, err)
		}
	}

	view, err := svc.Submit(ctx, "prop-1", session)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// No debounce wait: the blob must already be on disk.
	blob, _ := fs.savedBlob("prop-1")
	if len(blob) == 0 {
		t.Fatal("expected review state persisted before Submit returned")
	}
	if !strings.Contains(string(blob), "commentSubmissionHistory") {
		t.Fatalf("persisted blob missing submission history: %s", blob)
	}
	if !strings.Contains(string(blob), "submittedComments") {
		t.Fatalf("persisted blob missing frozen comments: %s", blob)
	}
	if view.SubmitVisible {
		t.Fatal("submit should hide once comments are frozen")
	}
}

func TestSubmitBlockedMutatesNothing(t *testing.T) {
	fs := newFakeStore(testProperty())
	svc, _, _ := newTestService(fs)
	session := Session{UserName: "Lucía"}

	_, err := svc.Submit(context.Background(), "prop-1", session)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("Submit() error = %v, want DomainError", err)
	}
	if domainErr.Code != "MISSING_SECTIONS" {
		t.Fatalf("code = %s, want MISSING_SECTIONS", domainErr.Code)
	}
	if _, count := fs.savedBlob("prop-1"); count != 0 {
		t.Fatalf("expected no save on blocked submit, got %d", count)
	}
}

func TestUpdateFieldsReopensRejectedSection(t *testing.T) {
	prop := testProperty()
	state := review.NewState()
	no := review.AnswerNo
	if err := state.SetAnswer("legal-documents", no, review.Values(prop.FieldValues)); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	blob, err := state.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	fs := newFakeStore(prop)
	fs.blobs["prop-1"] = blob

	svc, _, _ := newTestService(fs)
	session := Session{UserName: "Lucía"}

	values := map[string]any{}
	for k, v := range prop.FieldValues {
		values[k] = v
	}
	values["doc_a"] = "escritura.pdf"

	view, err := svc.UpdateFields(context.Background(), "prop-1", values, session)
	if err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}
	if len(view.ReopenedSections) != 1 || view.ReopenedSections[0] != "legal-documents" {
		t.Fatalf("reopened = %v, want [legal-documents]", view.ReopenedSections)
	}
	if view.Status != review.StatusPendingReview {
		t.Fatalf("status = %s, want PENDING_REVIEW", view.Status)
	}
}

func TestReviewsSurfacesCorruptState(t *testing.T) {
	fs := newFakeStore(testProperty())
	fs.blobs["prop-1"] = json.RawMessage(`{not json`)
	svc, _, _ := newTestService(fs)

	view, err := svc.Reviews(context.Background(), "prop-1", Session{UserName: "Lucía"})
	if err != nil {
		t.Fatalf("Reviews() error = %v", err)
	}
	if view.StateError == "" {
		t.Fatal("expected corrupt blob to surface a state error")
	}
	if view.Status != review.StatusPendingReview {
		t.Fatalf("status = %s, want PENDING_REVIEW", view.Status)
	}
}

func TestPendingEditsVisibleBeforeFlush(t *testing.T) {
	fs := newFakeStore(testProperty())
	svc, _, _ := newTestService(fs)
	session := Session{UserName: "Lucía"}
	ctx := context.Background()

	isCorrect := false
	if _, err := svc.SetAnswer(ctx, "prop-1", "legal-documents", &isCorrect, session); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}

	// Read immediately, before the debounce window closes.
	view, err := svc.Reviews(ctx, "prop-1", session)
	if err != nil {
		t.Fatalf("Reviews() error = %v", err)
	}
	if view.Status != review.StatusPendingInformation {
		t.Fatalf("status = %s, want PENDING_INFORMATION from pending state", view.Status)
	}
}

func TestBootstrapSeedsOnlyOnce(t *testing.T) {
	fs := newFakeStore()
	svc, _, _ := newTestService(fs)
	ctx := context.Background()

	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	first := len(fs.properties)
	if first == 0 {
		t.Fatal("expected bootstrap to seed properties")
	}
	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() second error = %v", err)
	}
	if len(fs.properties) != first {
		t.Fatal("expected second bootstrap to be a no-op")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(newFakeStore())
	session, err := svc.Login(context.Background(), "  Lucía  ", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.UserName != "Lucía" || session.Role != "reviewer" {
		t.Fatalf("unexpected session: %+v", session)
	}
	parsed, err := svc.SessionFromToken(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if parsed.UserName != "Lucía" {
		t.Fatalf("unexpected parsed session: %+v", parsed)
	}
}

func TestEditDuringInFlightSaveIsNotLost(t *testing.T) {
	fs := newFakeStore(testProperty())

	saveStarted := make(chan struct{})
	releaseSave := make(chan struct{})
	var saveMu sync.Mutex
	firstSave := true
	fs.saveReviewStateFn = func(ctx context.Context, propertyID string, blob json.RawMessage) error {
		saveMu.Lock()
		first := firstSave
		firstSave = false
		saveMu.Unlock()
		if first {
			close(saveStarted)
			<-releaseSave
		}
		fs.mu.Lock()
		fs.blobs[propertyID] = blob
		fs.saveCount++
		fs.mu.Unlock()
		return nil
	}

	svc, _, _ := newTestService(fs)
	session := Session{UserName: "Lucía"}
	ctx := context.Background()

	isCorrect := false
	if _, err := svc.SetAnswer(ctx, "prop-1", "legal-documents", &isCorrect, session); err != nil {
		t.Fatalf("SetAnswer(legal-documents) error = %v", err)
	}
	<-saveStarted

	secondDone := make(chan error, 1)
	go func() {
		_, err := svc.SetAnswer(ctx, "prop-1", "home-insurance", &isCorrect, session)
		secondDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	close(releaseSave)

	if err := <-secondDone; err != nil {
		t.Fatalf("SetAnswer(home-insurance) error = %v", err)
	}
	waitFor(t, func() bool {
		blob, _ := fs.savedBlob("prop-1")
		return strings.Contains(string(blob), "legal-documents") &&
			strings.Contains(string(blob), "home-insurance")
	})
}

func TestFailedSaveKeepsEditQueued(t *testing.T) {
	fs := newFakeStore(testProperty())

	var saveMu sync.Mutex
	failures := 1
	fs.saveReviewStateFn = func(ctx context.Context, propertyID string, blob json.RawMessage) error {
		saveMu.Lock()
		defer saveMu.Unlock()
		if failures > 0 {
			failures--
			return errors.New("connection reset")
		}
		fs.blobs[propertyID] = blob
		fs.saveCount++
		return nil
	}

	svc, _, _ := newTestService(fs)
	session := Session{UserName: "Lucía"}

	isCorrect := false
	if _, err := svc.SetAnswer(context.Background(), "prop-1", "legal-documents", &isCorrect, session); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}

	waitFor(t, func() bool {
		blob, _ := fs.savedBlob("prop-1")
		return strings.Contains(string(blob), "legal-documents")
	})
}

type fakeDocs struct{}

func (fakeDocs) List(ctx context.Context, propertyID, field string) ([]string, error) {
	return []string{"poliza.pdf"}, nil
}

func (fakeDocs) PresignedURL(ctx context.Context, propertyID, field, name string) (string, error) {
	return "https://storage.local/" + propertyID + "/" + field + "/" + name + "?sig=abc", nil
}

func TestDocumentDownloadURL(t *testing.T) {
	fs := newFakeStore(testProperty())
	cfg := config.Config{
		AuthSecret:     "test-secret",
		TokenTTL:       time.Hour,
		ReviewDebounce: 10 * time.Millisecond,
	}
	svc := New(cfg, fs, &fakeArchive{}, &fakeSearch{}, &fakePublisher{}, fakeDocs{})
	ctx := context.Background()

	url, err := svc.DocumentURL(ctx, "prop-1", "insurance_docs", "poliza.pdf")
	if err != nil {
		t.Fatalf("DocumentURL() error = %v", err)
	}
	if !strings.Contains(url, "prop-1/insurance_docs/poliza.pdf") {
		t.Fatalf("unexpected url: %s", url)
	}

	_, err = svc.DocumentURL(ctx, "prop-1", "surface_m2", "poliza.pdf")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "UNKNOWN_FIELD" {
		t.Fatalf("DocumentURL(surface_m2) error = %v, want UNKNOWN_FIELD", err)
	}

	_, err = svc.DocumentURL(ctx, "prop-1", "insurance_docs", "")
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_QUERY" {
		t.Fatalf("DocumentURL(empty name) error = %v, want INVALID_QUERY", err)
	}
}

func TestDocumentURLWithoutStore(t *testing.T) {
	svc, _, _ := newTestService(newFakeStore(testProperty()))
	_, err := svc.DocumentURL(context.Background(), "prop-1", "insurance_docs", "poliza.pdf")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "DOCSTORE_UNAVAILABLE" {
		t.Fatalf("DocumentURL() error = %v, want DOCSTORE_UNAVAILABLE", err)
	}
}
