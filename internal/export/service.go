package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/review"
)

// DataStore defines the interface for data access.
type DataStore interface {
	GetProperty(ctx context.Context, id string) (PropertyInfo, error)
	LoadReviewState(ctx context.Context, id string) ([]byte, error)
}

// PropertyInfo holds basic property metadata for the report header.
type PropertyInfo struct {
	ID         string
	Address    string
	PostalCode string
	City       string
	Stage      string
}

// Service provides review report export functionality.
type Service struct {
	store DataStore
}

// NewService creates a new export service.
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export renders the property's review report and converts it to PDF.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	prop, err := s.store.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}

	blob, err := s.store.LoadReviewState(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("load review state: %w", err)
	}
	state, err := review.Decode(blob)
	if err != nil {
		// A corrupt blob degrades to an empty review, the report still renders.
		log.Printf("export: review state for %s unreadable: %v", req.PropertyID, err)
	}

	data := buildTemplateData(prop, state)
	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return exportPDF(html, prop.Address)
}

func buildTemplateData(prop PropertyInfo, state *review.State) TemplateData {
	status := state.GlobalStatus()
	data := TemplateData{
		Address:     prop.Address,
		City:        prop.City,
		PostalCode:  prop.PostalCode,
		Stage:       prop.Stage,
		Status:      string(status),
		StatusLabel: statusLabel(status),
		GeneratedAt: time.Now(),
	}

	for _, section := range review.Sections {
		row := TemplateSection{
			Title:       section.Title,
			AnswerLabel: answerLabel(review.AnswerUnset),
		}
		if rec, ok := state.Records[section.ID]; ok {
			row.AnswerLabel = answerLabel(rec.Answer)
			row.Comments = rec.Comments
			row.SubmittedComments = rec.SubmittedComments
			row.HasIssue = rec.HasIssue
		}
		data.Sections = append(data.Sections, row)
	}

	for _, entry := range state.Meta.History {
		data.History = append(data.History, TemplateHistoryEntry{
			SectionTitle: entry.SectionTitle,
			Comments:     entry.Comments,
			SubmittedAt:  entry.SubmittedAt,
		})
	}
	return data
}

func statusLabel(status review.Status) string {
	switch status {
	case review.StatusNone:
		return "Sin incidencias"
	case review.StatusPendingInformation:
		return "Pendiente de información"
	default:
		return "Pendiente de revisión"
	}
}

func answerLabel(answer review.Answer) string {
	switch answer {
	case review.AnswerYes:
		return "Correcto"
	case review.AnswerNo:
		return "Incorrecto"
	default:
		return "Pendiente"
	}
}
