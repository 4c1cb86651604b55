package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"pathwaymed-backend/models"
	"pathwaymed-backend/repository"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

// ExportService renders conversations as downloadable PDF documents
type ExportService struct {
	convRepo *repository.ConversationRepository
}

// NewExportService creates a new export service
func NewExportService(convRepo *repository.ConversationRepository) *ExportService {
	return &ExportService{convRepo: convRepo}
}

// ExportConversationPDF renders a conversation transcript, including per-answer
// sources, as a PDF
func (s *ExportService) ExportConversationPDF(ctx context.Context, userID, conversationID uuid.UUID) ([]byte, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID, userID)
	if err != nil {
		return nil, ErrConversationAccess
	}

	messages, err := s.convRepo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(conv.Title), "", "C", false)
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.MultiCell(0, 5, conv.CreatedAt.Format("January 2, 2006 15:04"), "", "C", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	for _, m := range messages {
		s.renderMessage(pdf, tr, m)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ExportService) renderMessage(pdf *fpdf.Fpdf, tr func(string) string, m *models.Message) {
	label := "You"
	if m.Sender == models.SenderBot {
		label = "Assistant"
		pdf.SetFillColor(235, 242, 250)
	} else {
		pdf.SetFillColor(245, 245, 245)
	}

	header := label
	if !m.CreatedAt.IsZero() {
		header = fmt.Sprintf("%s  -  %s", label, m.CreatedAt.Format("Jan 2 15:04"))
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, tr(header), "", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5.5, tr(m.Text), "", "L", false)

	if m.Sender == models.SenderBot && len(m.Sources) > 0 {
		s.renderSources(pdf, tr, m.Sources)
	}
	pdf.Ln(4)
}

func (s *ExportService) renderSources(pdf *fpdf.Fpdf, tr func(string) string, sources models.MessageSources) {
	diseases := make([]string, 0, len(sources))
	for d := range sources {
		diseases = append(diseases, d)
	}
	sort.Strings(diseases)

	pdf.Ln(2)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	for _, disease := range diseases {
		src := sources[disease]
		line := fmt.Sprintf("Source: %s", disease)
		if len(src.Lines) > 0 {
			line += fmt.Sprintf(" (blocks %s)", joinRefs(src.Lines))
		}
		pdf.MultiCell(0, 4, tr(line), "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)
}

func joinRefs(refs []string) string {
	var b bytes.Buffer
	for i, ref := range refs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ref)
	}
	return b.String()
}
