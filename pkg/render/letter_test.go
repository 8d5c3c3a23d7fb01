package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterRendererRequiresCodeAndTitle(t *testing.T) {
	renderer := NewLetterRenderer()
	_, err := renderer.Render(Letter{})
	require.Error(t, err)
}

func TestLetterRendererProducesPDF(t *testing.T) {
	renderer := NewLetterRenderer()
	signedAt := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	data, err := renderer.Render(Letter{
		Institution: "Universiti Teknologi",
		Faculty:     "Faculty of Computing",
		Code:        "BLI-01",
		Title:       "Application for Industrial Training Placement",
		Intro:       "The student below has applied for an industrial training placement.",
		Fields: []Field{
			{Label: "Student Name", Value: "Nurul Izzah"},
			{Label: "Matric No", Value: "A20EC0101"},
			{Label: "Program", Value: "Software Engineering"},
		},
		Body: []string{"We would appreciate your consideration of this application."},
		Slots: []SignatureSlot{
			{Role: "Student", SignerName: "Nurul Izzah", SignedAt: &signedAt, Signature: TypedSignature{Text: "Nurul Izzah"}},
			{Role: "Coordinator", SignerName: "Dr. Aminah Yusof"},
		},
	})
	require.NoError(t, err)
	assert.True(t, len(data) > 500)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestLetterRendererToleratesFailedSlot(t *testing.T) {
	renderer := NewLetterRenderer()
	data, err := renderer.Render(Letter{
		Code:  "BLI-04",
		Title: "Supervisor Acceptance",
		Slots: []SignatureSlot{
			{Role: "Supervisor", Failed: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
