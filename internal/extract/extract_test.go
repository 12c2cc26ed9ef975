package extract_test

import (
	"testing"

	"github.com/vocero-ai/vocero/internal/extract"
)

func TestEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain address", "mándame la cotización a ventas@acme.com.mx por favor", "ventas@acme.com.mx"},
		{"address with dots", "es juan.perez+compras@proveedor.io", "juan.perez+compras@proveedor.io"},
		{"no address", "no tengo correo a la mano", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extract.Email(tt.text); got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"dictated with spaces", "mi número es 55 12 34 56 78", "5512345678"},
		{"with country code", "márcame al +52 55 1234 5678", "525512345678"},
		{"dashed", "apunta: 81-8345-6790", "8183456790"},
		{"too short", "estamos en el piso 5", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extract.Phone(tt.text); got != tt.want {
				t.Errorf("Phone(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"me llamo", "Sí, me llamo Laura Gutiérrez", "Laura Gutiérrez"},
		{"mi nombre es", "mi nombre es Carlos y veo las compras", "Carlos"},
		{"no introduction", "aquí nadie se llama así", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extract.Name(tt.text); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestCompany(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"de la empresa", "le llamo de la empresa Aceros Monterrey", "Aceros Monterrey"},
		{"trabajo en", "trabajo en Grupo Delta", "Grupo Delta"},
		{"no affiliation", "soy independiente", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extract.Company(tt.text); got != tt.want {
				t.Errorf("Company(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestAll(t *testing.T) {
	t.Parallel()

	got := extract.All("me llamo Ana, mi correo es ana@acme.mx y mi teléfono 55 9876 5432")

	want := map[string]string{
		extract.FieldName:  "Ana",
		extract.FieldEmail: "ana@acme.mx",
		extract.FieldPhone: "5598765432",
	}
	if len(got) != len(want) {
		t.Fatalf("All() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("All()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestAll_NothingExtracted(t *testing.T) {
	t.Parallel()

	if got := extract.All("hola, buenas tardes"); got != nil {
		t.Errorf("All() = %v, want nil", got)
	}
}
