// Package profile defines client personas and their storage. A profile is the
// immutable snapshot loaded at call creation: who the sales agent pretends to
// be, what it sells and under which commercial conditions.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no profile exists for the requested client key.
var ErrNotFound = errors.New("profile: not found")

// Conditions are the commercial terms the agent may quote on a call.
type Conditions struct {
	Pricing      string `json:"pricing" yaml:"pricing"`
	MinOrder     string `json:"min_order" yaml:"min_order"`
	DeliveryTime string `json:"delivery_time" yaml:"delivery_time"`
	Coverage     string `json:"coverage" yaml:"coverage"`
}

// Profile describes one client's sales persona.
type Profile struct {
	// ClientKey is the unique identifier used in webhook query parameters
	// and stream metadata.
	ClientKey string `json:"client_key"`

	// AgentName is the display name the persona introduces itself with.
	AgentName string `json:"agent_name"`

	// CompanyName is the company the persona claims to represent.
	CompanyName string `json:"company_name"`

	// Industry is the client's line of business.
	Industry string `json:"industry"`

	// Products lists what the persona offers.
	Products []string `json:"products"`

	// Conditions holds the commercial terms.
	Conditions Conditions `json:"conditions"`

	// Tone is the desired speaking style (e.g. "cercano y profesional").
	Tone string `json:"tone"`

	// Goal is what a successful call achieves (e.g. "agendar una demo").
	Goal string `json:"goal"`

	// Extra is free-text additional instructions appended to the persona.
	Extra string `json:"extra_instructions"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Validate checks the fields required before a profile can drive a call.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.ClientKey) == "" {
		return fmt.Errorf("profile: client_key is required")
	}
	if strings.TrimSpace(p.CompanyName) == "" {
		return fmt.Errorf("profile: company_name is required")
	}
	return nil
}

// Greeting is the opening line the test harness shows before any audio has
// been exchanged.
func (p *Profile) Greeting() string {
	agent := p.AgentName
	if agent == "" {
		agent = "tu vendedor"
	}
	return fmt.Sprintf("¡Hola! Soy %s de %s. ¿En qué puedo ayudarte?", agent, p.CompanyName)
}

// Instructions renders the persona system instructions sent to the realtime
// speech session: identity, offering, commercial terms and the behavioral
// rules the bridge depends on (stay silent on menus, hang up on voicemail,
// capture contact data, close with a clear farewell).
func (p *Profile) Instructions() string {
	agent := p.AgentName
	if agent == "" {
		agent = "un vendedor"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Eres %s, vendedor de %s.", agent, p.CompanyName)
	if p.Industry != "" {
		fmt.Fprintf(&b, " Giro: %s.", p.Industry)
	}
	if len(p.Products) > 0 {
		fmt.Fprintf(&b, " Productos: %s.", strings.Join(p.Products, ", "))
	}
	if p.Conditions.Pricing != "" {
		fmt.Fprintf(&b, " Precios: %s.", p.Conditions.Pricing)
	}
	if p.Conditions.MinOrder != "" {
		fmt.Fprintf(&b, " Pedido mínimo: %s.", p.Conditions.MinOrder)
	}
	if p.Conditions.DeliveryTime != "" {
		fmt.Fprintf(&b, " Tiempo de entrega: %s.", p.Conditions.DeliveryTime)
	}
	if p.Conditions.Coverage != "" {
		fmt.Fprintf(&b, " Cobertura: %s.", p.Conditions.Coverage)
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, " Tono: %s.", p.Tone)
	}
	if p.Goal != "" {
		fmt.Fprintf(&b, " Objetivo de la llamada: %s.", p.Goal)
	}

	b.WriteString(`

REGLAS:
1. Saluda de forma natural y breve; esto es una llamada telefónica real.
2. Pide hablar con la persona encargada de compras.
3. Si escuchas un menú automático, guarda silencio y espera.
4. Si cae el buzón de voz, despídete de inmediato.
5. Intenta siempre capturar nombre, empresa, correo, teléfono y nivel de interés.
6. Cierra la llamada con una despedida clara.

Habla natural en español mexicano. Sé breve.`)

	if p.Extra != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Extra)
	}
	return b.String()
}
