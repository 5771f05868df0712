package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already clean", input: "5215512345678", want: "5215512345678"},
		{name: "formatted", input: "+52 (55) 1234-5678", want: "525512345678"},
		{name: "empty", input: "", want: ""},
		{name: "no digits", input: "abc", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DigitsOnly(tt.input))
		})
	}
}

func TestNormalizeDirectSendPhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ten digit local number gets prefix", input: "55 1234 5678", want: "525512345678"},
		{name: "international number untouched", input: "+52 1 55 1234 5678", want: "5215512345678"},
		{name: "short number untouched", input: "12345", want: "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDirectSendPhone(tt.input))
		})
	}
}

func TestUserJID(t *testing.T) {
	assert.Equal(t, "5215512345678@s.whatsapp.net", UserJID("5215512345678"))
}

func TestFirstWord(t *testing.T) {
	assert.Equal(t, "Ana", FirstWord("Ana María"))
	assert.Equal(t, "Ana", FirstWord("  Ana   María "))
	assert.Equal(t, "", FirstWord(""))
	assert.Equal(t, "", FirstWord("   "))
}
