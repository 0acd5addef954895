package lang

import "github.com/google/uuid"

// Net is a named electrical connection point. Identity is the ID, minted
// fresh on every creation: two instantiations of the same interface or
// module never share a net by reference, even when the names coincide.
type Net struct {
	ID     uuid.UUID
	Name   string
	Symbol string // optional symbol template reference
}

// NewNet mints a net with a fresh identity.
func NewNet(name, symbol string) *Net {
	return &Net{ID: uuid.New(), Name: name, Symbol: symbol}
}

// Instantiate copies the net template into a fresh, independent net. The
// symbol annotation is inherited; a template that names its net explicitly
// keeps that name, otherwise fallback (usually "<prefix>_<field>") applies.
func (n *Net) Instantiate(fallback string) *Net {
	name := n.Name
	if name == "" {
		name = fallback
	}
	return NewNet(name, n.Symbol)
}
