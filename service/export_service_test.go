package service

import (
	"bytes"
	"testing"

	"pathwaymed-backend/models"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMessageProducesValidPDF(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	svc := NewExportService(nil)
	svc.renderMessage(pdf, tr, &models.Message{
		Sender: models.SenderUser,
		Text:   "What do I give for a child with fever and fast breathing?",
	})
	svc.renderMessage(pdf, tr, &models.Message{
		Sender: models.SenderBot,
		Text:   "### Key Takeaways\nStart amoxicillin (Pneumonia).",
		Sources: models.MessageSources{
			"Pneumonia": {Lines: []string{"L1", "L4"}},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	require.NotEmpty(t, buf.Bytes())
	assert.Equal(t, "%PDF", buf.String()[:4])
}

func TestJoinRefs(t *testing.T) {
	assert.Equal(t, "", joinRefs(nil))
	assert.Equal(t, "L1", joinRefs([]string{"L1"}))
	assert.Equal(t, "L1, L4, T2", joinRefs([]string{"L1", "L4", "T2"}))
}
