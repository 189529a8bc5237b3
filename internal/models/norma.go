package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the wire format of Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without time or zone. The zero value means "unset".
type Date struct {
	t time.Time
}

// NewDate returns the date for year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses YYYY-MM-DD. A bare RFC 3339 timestamp is accepted and truncated.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q: %w", s, ErrInvalid)
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool           { return d.t.IsZero() }
func (d Date) Year() int              { return d.t.Year() }
func (d Date) Time() time.Time        { return d.t }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormKind is the legal instrument type of a norm.
type NormKind string

const (
	NormLey             NormKind = "ley"
	NormDecreto         NormKind = "decreto"
	NormActoLegislativo NormKind = "acto_legislativo"
	NormCodigo          NormKind = "codigo"
	NormResolucion      NormKind = "resolucion"
	NormAcuerdo         NormKind = "acuerdo"
)

// Valid reports whether k is one of the known kinds.
func (k NormKind) Valid() bool {
	switch k {
	case NormLey, NormDecreto, NormActoLegislativo, NormCodigo, NormResolucion, NormAcuerdo:
		return true
	}
	return false
}

// NormStatus is the stored validity status of a norm.
type NormStatus string

const (
	StatusInForce            NormStatus = "vigente"
	StatusDerogated          NormStatus = "derogada"
	StatusPartiallyDerogated NormStatus = "parcialmente_derogada"
)

// ParseNormStatus accepts the stored Spanish names and their English equivalents.
func ParseNormStatus(s string) (NormStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vigente", "inforce", "in_force":
		return StatusInForce, true
	case "derogada", "derogated":
		return StatusDerogated, true
	case "parcialmente_derogada", "partiallyderogated", "partially_derogated":
		return StatusPartiallyDerogated, true
	}
	return "", false
}

// ModificationKind classifies an amendment.
type ModificationKind string

const (
	ModModification  ModificationKind = "modificacion"
	ModAddition      ModificationKind = "adicion"
	ModSubrogation   ModificationKind = "subrogacion"
	ModClarification ModificationKind = "aclaracion"
)

// Valid reports whether k is one of the known kinds.
func (k ModificationKind) Valid() bool {
	switch k {
	case ModModification, ModAddition, ModSubrogation, ModClarification:
		return true
	}
	return false
}

// PartialDerogation removes part of a norm, usually one article.
type PartialDerogation struct {
	Article     string `json:"articulo,omitempty"`
	DerogatedBy string `json:"derogadoPor"`
	Since       Date   `json:"derogadaDesde"`
	Reason      string `json:"razon,omitempty"`
}

// Modification records an amendment made by another norm.
type Modification struct {
	ByNorm string           `json:"norma"`
	Date   Date             `json:"fecha"`
	Kind   ModificationKind `json:"tipo"`
	Note   string           `json:"descripcion,omitempty"`
}

// Norma is the validity record of one norm. Keys follow the Spanish layout
// of the per-norm JSON files.
type Norma struct {
	ID                 string              `json:"normaId"`
	Name               string              `json:"nombre"`
	Kind               NormKind            `json:"tipo"`
	EffectiveFrom      Date                `json:"vigenteDesde"`
	EffectiveUntil     Date                `json:"vigenteHasta"`
	DerogatedBy        string              `json:"derogadaPor,omitempty"`
	DerogatedSince     Date                `json:"derogadaDesde"`
	PartialDerogations []PartialDerogation `json:"derogacionesParciales"`
	Modifications      []Modification      `json:"modificaciones"`
	Status             NormStatus          `json:"estado"`
	Notes              []string            `json:"notas,omitempty"`
}

var normIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidNormID reports whether id is a canonical norm id such as "ley-100-1993".
func ValidNormID(id string) bool {
	return len(id) <= 128 && normIDPattern.MatchString(id)
}

// Validate checks the fields required to store a record.
func (n *Norma) Validate() error {
	if !ValidNormID(n.ID) {
		return fmt.Errorf("invalid norm id %q: %w", n.ID, ErrInvalid)
	}
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("norm %s has no name: %w", n.ID, ErrInvalid)
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("norm %s has unknown kind %q: %w", n.ID, n.Kind, ErrInvalid)
	}
	if n.EffectiveFrom.IsZero() {
		return fmt.Errorf("norm %s has no effective date: %w", n.ID, ErrInvalid)
	}
	if !n.EffectiveUntil.IsZero() && n.EffectiveUntil.Before(n.EffectiveFrom) {
		return fmt.Errorf("norm %s ends before it starts: %w", n.ID, ErrInvalid)
	}
	return nil
}

// Clone returns a deep copy.
func (n *Norma) Clone() *Norma {
	c := *n
	c.PartialDerogations = append([]PartialDerogation(nil), n.PartialDerogations...)
	c.Modifications = append([]Modification(nil), n.Modifications...)
	c.Notes = append([]string(nil), n.Notes...)
	return &c
}
