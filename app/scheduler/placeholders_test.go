package scheduler

import (
	"testing"
	"time"

	"github.com/cantalab/leadflow/models"
	"github.com/stretchr/testify/assert"
)

func TestRenderPlaceholders(t *testing.T) {
	attrs := map[string]string{
		"nombre":   "Ana María López",
		"telefono": "5215512345678",
		"estado":   "nuevo",
	}

	tests := []struct {
		name     string
		template string
		attrs    map[string]string
		want     string
	}{
		{name: "first word of name", template: "Hola {{nombre}}!", attrs: attrs, want: "Hola Ana!"},
		{name: "missing name renders empty", template: "Hola {{nombre}}!", attrs: map[string]string{}, want: "Hola !"},
		{name: "unknown field renders empty", template: "Código {{codigo}}.", attrs: attrs, want: "Código ."},
		{name: "several fields", template: "{{nombre}} ({{telefono}}) {{estado}}", attrs: attrs, want: "Ana (5215512345678) nuevo"},
		{name: "repeated field", template: "{{nombre}} {{nombre}}", attrs: attrs, want: "Ana Ana"},
		{name: "non word braces untouched", template: "{{ nombre }}", attrs: attrs, want: "{{ nombre }}"},
		{name: "no placeholders", template: "sin cambios", attrs: attrs, want: "sin cambios"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderPlaceholders(tt.template, tt.attrs))
		})
	}
}

func TestRenderPlaceholders_LeadFields(t *testing.T) {
	lead := &models.Lead{
		Name:        "Ana",
		Labels:      []string{"NuevoLead", "Promo"},
		UnreadCount: 2,
		CreatedAt:   time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	got := RenderPlaceholders("{{nombre}}: {{etiquetas}} / {{unreadCount}} / {{fecha_creacion}} / {{lastMessageAt}}", lead.Attributes())
	assert.Equal(t, "Ana: NuevoLead,Promo / 2 / 2025-05-01T10:00:00Z / ", got)
}

func TestRenderForm(t *testing.T) {
	tests := []struct {
		name     string
		template string
		phone    string
		fullName string
		want     string
	}{
		{
			name:     "encodes full name and collapses newlines",
			template: "Completa tu registro:\nhttps://forms.cantalab.com/?tel={{telefono}}&n={{nombre}}\r\n",
			phone:    "5215512345678",
			fullName: "Ana María",
			want:     "Completa tu registro: https://forms.cantalab.com/?tel=5215512345678&n=Ana%20Mar%C3%ADa",
		},
		{
			name:     "only first occurrences replaced",
			template: "{{telefono}} {{telefono}} {{nombre}} {{nombre}}",
			phone:    "123",
			fullName: "Luis",
			want:     "123 {{telefono}} Luis {{nombre}}",
		},
		{
			name:     "reserved characters",
			template: "n={{nombre}}",
			phone:    "1",
			fullName: "O'Brien & Hijos (MX)",
			want:     "n=O'Brien%20%26%20Hijos%20(MX)",
		},
		{
			name:     "blank template",
			template: " \n ",
			phone:    "1",
			fullName: "Ana",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderForm(tt.template, tt.phone, tt.fullName))
		})
	}
}
