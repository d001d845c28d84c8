package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/auth"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/config"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/review"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/search"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/store"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	ExpiresAt time.Time
}

type CreatePropertyInput struct {
	Address     string         `json:"address"`
	PostalCode  string         `json:"postalCode"`
	City        string         `json:"city"`
	FieldValues map[string]any `json:"fieldValues"`
}

// PropertyView is the board representation of a property.
type PropertyView struct {
	ID          string         `json:"id"`
	Address     string         `json:"address"`
	PostalCode  string         `json:"postalCode"`
	City        string         `json:"city"`
	Stage       string         `json:"stage"`
	FieldValues map[string]any `json:"fieldValues,omitempty"`
	Status      review.Status  `json:"reviewStatus"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// ReviewView is the review panel payload: the wire-format state blob
// plus everything the dashboard derives from it.
type ReviewView struct {
	PropertyID       string          `json:"propertyId"`
	State            json.RawMessage `json:"state"`
	Status           review.Status   `json:"status"`
	SubmitVisible    bool            `json:"submitVisible"`
	ReopenedSections []string        `json:"reopenedSections,omitempty"`
	StateError       string          `json:"stateError,omitempty"`
}

type dataStore interface {
	ListProperties(context.Context) ([]store.Property, error)
	GetProperty(context.Context, string) (store.Property, error)
	InsertProperty(context.Context, store.Property) error
	UpdateFieldValues(context.Context, string, map[string]any) error
	UpdateStage(context.Context, string, string) error
	LoadReviewState(context.Context, string) (json.RawMessage, error)
	SaveReviewState(context.Context, string, json.RawMessage) error
	Ping(ctx context.Context) error
}

type archiveStore interface {
	CommitState(propertyID string, blob json.RawMessage, author, message string) (store.CommitInfo, error)
	History(propertyID string, limit int) ([]store.CommitInfo, error)
	StateAt(propertyID, hash string) (json.RawMessage, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexProperty(p search.PropertyRecord)
	IndexComments(comments []search.CommentRecord, removedIDs []string)
}

type eventPublisher interface {
	PublishReviewUpdate(ctx context.Context, payload eventPayload) error
}

type documentLister interface {
	List(ctx context.Context, propertyID, field string) ([]string, error)
	PresignedURL(ctx context.Context, propertyID, field, name string) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	archive  archiveStore
	search   searchIndex
	events   eventPublisher
	docs     documentLister
	debounce time.Duration

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	persistMu sync.Mutex
	pending   map[string]*pendingState
}

// New wires the service. search, events and docs may be nil when the
// matching backend is not configured.
func New(cfg config.Config, dataStore dataStore, archive archiveStore, searchSvc searchIndex, events eventPublisher, docs documentLister) *Service {
	debounce := cfg.ReviewDebounce
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		archive:  archive,
		search:   searchSvc,
		events:   events,
		docs:     docs,
		debounce: debounce,
		locks:    make(map[string]*sync.Mutex),
		pending:  make(map[string]*pendingState),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds demo properties on an empty database.
func (s *Service) Bootstrap(ctx context.Context) error {
	properties, err := s.store.ListProperties(ctx)
	if err != nil {
		return err
	}
	if len(properties) > 0 {
		return nil
	}

	seeds := []store.Property{
		{
			ID:         util.NewID("prop"),
			Address:    "Calle Mayor 12, 3ºA",
			PostalCode: "28013",
			City:       "Madrid",
			Stage:      store.StageReview,
			FieldValues: map[string]any{
				"address":           "Calle Mayor 12, 3ºA",
				"postal_code":       "28013",
				"city":              "Madrid",
				"surface_m2":        78,
				"rooms":             3,
				"bathrooms":         1,
				"insurance_company": "Mapfre",
				"policy_number":     "MAP-4410023",
				"insurance_docs":    []any{"poliza.pdf"},
				"monthly_rent":      1250,
				"deposit":           2500,
				"contract_start":    "2025-11-01",
				"tenant_docs":       []any{},
				"mortgage_lender":   "BBVA",
			},
		},
		{
			ID:         util.NewID("prop"),
			Address:    "Avinguda Diagonal 405, 2-1",
			PostalCode: "08008",
			City:       "Barcelona",
			Stage:      store.StageLead,
			FieldValues: map[string]any{
				"address":     "Avinguda Diagonal 405, 2-1",
				"postal_code": "08008",
				"city":        "Barcelona",
				"surface_m2":  96,
				"rooms":       4,
			},
		},
	}

	for _, seed := range seeds {
		if err := s.store.InsertProperty(ctx, seed); err != nil {
			return err
		}
		s.indexProperty(seed)
	}
	return nil
}

// Login issues a bearer token for the given reviewer name. Identity is
// name-based; there is no account database behind it.
func (s *Service) Login(ctx context.Context, name, role string) (Session, error) {
	userName := normalizeName(name)
	if role == "" {
		role = "reviewer"
	}
	expiresAt := time.Now().Add(s.cfg.TokenTTL)
	claims := auth.Claims{
		Sub:  util.NewID("user"),
		Name: userName,
		Role: role,
		Exp:  expiresAt.Unix(),
	}
	token, err := auth.IssueToken([]byte(s.cfg.AuthSecret), claims)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  userName,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.AuthSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) ListProperties(ctx context.Context) ([]PropertyView, error) {
	properties, err := s.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PropertyView, 0, len(properties))
	for _, prop := range properties {
		state := s.decodeOrPending(prop)
		views = append(views, PropertyView{
			ID:         prop.ID,
			Address:    prop.Address,
			PostalCode: prop.PostalCode,
			City:       prop.City,
			Stage:      prop.Stage,
			Status:     state.GlobalStatus(),
			UpdatedAt:  prop.UpdatedAt,
		})
	}
	return views, nil
}

func (s *Service) GetProperty(ctx context.Context, propertyID string) (PropertyView, error) {
	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return PropertyView{}, err
	}
	state := s.decodeOrPending(prop)
	return PropertyView{
		ID:          prop.ID,
		Address:     prop.Address,
		PostalCode:  prop.PostalCode,
		City:        prop.City,
		Stage:       prop.Stage,
		FieldValues: prop.FieldValues,
		Status:      state.GlobalStatus(),
		UpdatedAt:   prop.UpdatedAt,
	}, nil
}

func (s *Service) CreateProperty(ctx context.Context, input CreatePropertyInput, session Session) (PropertyView, error) {
	if input.Address == "" {
		return PropertyView{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Address is required", nil)
	}
	values := input.FieldValues
	if values == nil {
		values = map[string]any{}
	}
	prop := store.Property{
		ID:          util.NewID("prop"),
		Address:     input.Address,
		PostalCode:  input.PostalCode,
		City:        input.City,
		Stage:       store.StageLead,
		FieldValues: values,
	}
	if err := s.store.InsertProperty(ctx, prop); err != nil {
		return PropertyView{}, err
	}
	s.indexProperty(prop)
	return PropertyView{
		ID:          prop.ID,
		Address:     prop.Address,
		PostalCode:  prop.PostalCode,
		City:        prop.City,
		Stage:       prop.Stage,
		FieldValues: prop.FieldValues,
		Status:      review.StatusPendingReview,
	}, nil
}

func (s *Service) UpdateStage(ctx context.Context, propertyID, stage string) error {
	switch stage {
	case store.StageLead, store.StageReview, store.StagePublished, store.StageArchived:
	default:
		return domainError(http.StatusBadRequest, "INVALID_STAGE", "Unknown stage", nil)
	}
	if err := s.store.UpdateStage(ctx, propertyID, stage); err != nil {
		return err
	}
	if prop, err := s.store.GetProperty(ctx, propertyID); err == nil {
		s.indexProperty(prop)
	}
	return nil
}

// UpdateFields replaces a property's live field values. The review state
// is reloaded against the new values so approved-then-edited sections
// reopen silently.
func (s *Service) UpdateFields(ctx context.Context, propertyID string, values map[string]any, session Session) (*ReviewView, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	if values == nil {
		values = map[string]any{}
	}
	if err := s.store.UpdateFieldValues(ctx, propertyID, values); err != nil {
		return nil, err
	}
	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	s.indexProperty(prop)

	state, stateErr := s.loadState(ctx, prop)
	reopened := state.DetectDrift(review.Values(values))
	if len(reopened) > 0 {
		s.schedulePersist(prop, state, session.UserName, "Sections reopened after field edit")
	}
	return s.reviewView(prop, state, reopened, stateErr)
}

// Reviews returns the review panel state. Drift detection runs on every
// load, so edits made elsewhere reopen sections the moment the panel is
// fetched.
func (s *Service) Reviews(ctx context.Context, propertyID string, session Session) (*ReviewView, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	state, stateErr := s.loadState(ctx, prop)
	reopened := state.DetectDrift(review.Values(prop.FieldValues))
	if len(reopened) > 0 {
		s.schedulePersist(prop, state, session.UserName, "Sections reopened by drift check")
	}
	return s.reviewView(prop, state, reopened, stateErr)
}

// SetAnswer records a section approval or rejection. isCorrect is nil to
// reset the section to unreviewed.
func (s *Service) SetAnswer(ctx context.Context, propertyID, sectionID string, isCorrect *bool, session Session) (*ReviewView, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	state, stateErr := s.loadState(ctx, prop)
	reopened := state.DetectDrift(review.Values(prop.FieldValues))

	answer := review.AnswerUnset
	if isCorrect != nil {
		if *isCorrect {
			answer = review.AnswerYes
		} else {
			answer = review.AnswerNo
		}
	}
	if err := state.SetAnswer(sectionID, answer, review.Values(prop.FieldValues)); err != nil {
		return nil, sectionError(err)
	}
	s.schedulePersist(prop, state, session.UserName, "Review updated")
	return s.reviewView(prop, state, reopened, stateErr)
}

func (s *Service) SetComments(ctx context.Context, propertyID, sectionID, text string, session Session) (*ReviewView, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	state, stateErr := s.loadState(ctx, prop)
	reopened := state.DetectDrift(review.Values(prop.FieldValues))

	if err := state.SetComments(sectionID, text); err != nil {
		return nil, sectionError(err)
	}
	s.schedulePersist(prop, state, session.UserName, "Review comments edited")
	return s.reviewView(prop, state, reopened, stateErr)
}

func (s *Service) Resolve(ctx context.Context, propertyID, sectionID string, session Session) (*ReviewView, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	state, stateErr := s.loadState(ctx, prop)
	reopened := state.DetectDrift(review.Values(prop.FieldValues))

	if err := state.MarkResolved(sectionID, review.Values(prop.FieldValues)); err != nil {
		return nil, sectionError(err)
	}
	s.schedulePersist(prop, state, session.UserName, "Section resolved")
	return s.reviewView(prop, state, reopened, stateErr)
}

// Submit validates the full review and freezes the current comments into
// the submission history. Unlike the other review operations this one
// persists synchronously before returning.
func (s *Service) Submit(ctx context.Context, propertyID string, session Session) (*ReviewView, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()

	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	state, stateErr := s.loadState(ctx, prop)
	reopened := state.DetectDrift(review.Values(prop.FieldValues))

	_, blocker := state.Submit(review.Values(prop.FieldValues), time.Now())
	if blocker != nil {
		lock.Unlock()
		return nil, domainError(http.StatusConflict, blocker.Code(), blocker.Message(), map[string]any{
			"missingSections": blocker.MissingAnswers,
			"missingComments": blocker.MissingComments,
		})
	}
	s.schedulePersist(prop, state, session.UserName, "Review submitted")
	lock.Unlock()

	if err := s.Flush(ctx, propertyID); err != nil {
		return nil, err
	}
	return s.reviewView(prop, state, reopened, stateErr)
}

func (s *Service) History(propertyID string, limit int) ([]store.CommitInfo, error) {
	return s.archive.History(propertyID, limit)
}

func (s *Service) ArchivedState(propertyID, hash string) (json.RawMessage, error) {
	return s.archive.StateAt(propertyID, hash)
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Documents lists the uploaded files behind one document-array field.
func (s *Service) Documents(ctx context.Context, propertyID, field string) ([]string, error) {
	if s.docs == nil {
		return []string{}, nil
	}
	if !isDocumentField(field) {
		return nil, domainError(http.StatusNotFound, "UNKNOWN_FIELD", "Unknown document field", nil)
	}
	names, err := s.docs.List(ctx, propertyID, field)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// DocumentURL returns a short-lived download link for one uploaded file.
func (s *Service) DocumentURL(ctx context.Context, propertyID, field, name string) (string, error) {
	if s.docs == nil {
		return "", domainError(http.StatusNotImplemented, "DOCSTORE_UNAVAILABLE", "Document storage is not configured", nil)
	}
	if !isDocumentField(field) {
		return "", domainError(http.StatusNotFound, "UNKNOWN_FIELD", "Unknown document field", nil)
	}
	if name == "" {
		return "", domainError(http.StatusBadRequest, "INVALID_QUERY", "name is required", nil)
	}
	return s.docs.PresignedURL(ctx, propertyID, field, name)
}

func isDocumentField(field string) bool {
	for _, name := range review.DocumentListFields {
		if name == field {
			return true
		}
	}
	return false
}

func (s *Service) reviewView(prop store.Property, state *review.State, reopened []string, stateErr error) (*ReviewView, error) {
	blob, err := state.Encode()
	if err != nil {
		return nil, err
	}
	view := &ReviewView{
		PropertyID:       prop.ID,
		State:            blob,
		Status:           state.GlobalStatus(),
		SubmitVisible:    state.SubmitVisible(),
		ReopenedSections: reopened,
	}
	if stateErr != nil {
		view.StateError = stateErr.Error()
	}
	return view, nil
}

// loadState returns the property's review state, preferring a pending
// in-memory edit over the persisted blob. A blob that cannot be parsed
// degrades to an empty review; the error is surfaced, never fatal.
func (s *Service) loadState(ctx context.Context, prop store.Property) (*review.State, error) {
	if state, ok := s.pendingState(prop.ID); ok {
		return state, nil
	}
	blob, err := s.store.LoadReviewState(ctx, prop.ID)
	if err != nil {
		log.Printf("app: load review state %s: %v", prop.ID, err)
		return review.NewState(), nil
	}
	state, decodeErr := review.Decode(blob)
	if decodeErr != nil {
		log.Printf("app: review state %s unreadable, starting empty: %v", prop.ID, decodeErr)
	}
	return state, decodeErr
}

// decodeOrPending is the read-only variant used for status aggregation.
func (s *Service) decodeOrPending(prop store.Property) *review.State {
	if state, ok := s.pendingState(prop.ID); ok {
		return state
	}
	state, err := review.Decode(prop.ReviewState)
	if err != nil {
		log.Printf("app: review state %s unreadable: %v", prop.ID, err)
	}
	return state
}

func (s *Service) propertyLock(propertyID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[propertyID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[propertyID] = lock
	return lock
}

func (s *Service) indexProperty(prop store.Property) {
	if s.search == nil {
		return
	}
	s.search.IndexProperty(search.PropertyRecord{
		ID:         prop.ID,
		Address:    prop.Address,
		PostalCode: prop.PostalCode,
		City:       prop.City,
		Stage:      prop.Stage,
	})
}

func sectionError(err error) error {
	var unknown *review.ErrUnknownSection
	if errors.As(err, &unknown) {
		return domainError(http.StatusNotFound, "UNKNOWN_SECTION", "Unknown review section", nil)
	}
	return err
}

func normalizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "Revisor"
	}
	return trimmed
}
