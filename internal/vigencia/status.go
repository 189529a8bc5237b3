// Package vigencia tracks when Colombian norms are in force and answers
// point-in-time validity questions.
package vigencia

import (
	"encoding/json"

	"github.com/hyperjump/norma/internal/models"
)

// Status is the validity of a norm at a date. It is one of InForce,
// NotYetEffective, Derogated or PartiallyDerogated.
type Status interface {
	// Name is the stable wire name of the variant.
	Name() string
	isStatus()
}

// InForce means the whole norm applies.
type InForce struct{}

// NotYetEffective means the date precedes the norm's effective date.
type NotYetEffective struct {
	From models.Date
}

// Derogated means the norm was repealed as a whole.
type Derogated struct {
	By    string
	Since models.Date
}

// PartiallyDerogated means the norm applies except for the listed parts.
type PartiallyDerogated struct {
	Derogations []models.PartialDerogation
}

func (InForce) Name() string            { return "inForce" }
func (NotYetEffective) Name() string    { return "notYetEffective" }
func (Derogated) Name() string          { return "derogated" }
func (PartiallyDerogated) Name() string { return "partiallyDerogated" }

func (InForce) isStatus()            {}
func (NotYetEffective) isStatus()    {}
func (Derogated) isStatus()          {}
func (PartiallyDerogated) isStatus() {}

// Result is the answer to a Consult call.
type Result struct {
	NormID  string
	Date    models.Date
	InForce bool
	Status  Status
}

// Stored maps the result onto the persisted status field. A norm that is
// not yet effective is stored as derogated.
func (r *Result) Stored() models.NormStatus {
	switch r.Status.(type) {
	case InForce:
		return models.StatusInForce
	case PartiallyDerogated:
		return models.StatusPartiallyDerogated
	default:
		return models.StatusDerogated
	}
}

type resultJSON struct {
	NormID             string                     `json:"normId"`
	Date               models.Date                `json:"date"`
	InForce            bool                       `json:"inForce"`
	Status             string                     `json:"status"`
	EffectiveFrom      *models.Date               `json:"effectiveFrom,omitempty"`
	DerogatedBy        string                     `json:"derogatedBy,omitempty"`
	DerogatedSince     *models.Date               `json:"derogatedSince,omitempty"`
	PartialDerogations []models.PartialDerogation `json:"partialDerogations,omitempty"`
}

// MarshalJSON flattens the status variant into the result object.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{NormID: r.NormID, Date: r.Date, InForce: r.InForce}
	if r.Status != nil {
		out.Status = r.Status.Name()
	}
	switch s := r.Status.(type) {
	case NotYetEffective:
		out.EffectiveFrom = &s.From
	case Derogated:
		out.DerogatedBy = s.By
		if !s.Since.IsZero() {
			out.DerogatedSince = &s.Since
		}
	case PartiallyDerogated:
		out.PartialDerogations = s.Derogations
	}
	return json.Marshal(out)
}

// Evaluate computes the validity of n at date:
//
//  1. date before the effective date: not yet effective.
//  2. date on or after the derogation date, or after the effective end: derogated.
//  3. partial derogations already effective at date: partially derogated.
//  4. otherwise in force.
func Evaluate(n *models.Norma, date models.Date) *Result {
	r := &Result{NormID: n.ID, Date: date}
	if date.Before(n.EffectiveFrom) {
		r.Status = NotYetEffective{From: n.EffectiveFrom}
		return r
	}
	derogatedAt := !n.DerogatedSince.IsZero() && !date.Before(n.DerogatedSince)
	expired := !n.EffectiveUntil.IsZero() && date.After(n.EffectiveUntil)
	if derogatedAt || expired {
		since := n.DerogatedSince
		if since.IsZero() {
			since = n.EffectiveUntil
		}
		r.Status = Derogated{By: n.DerogatedBy, Since: since}
		return r
	}
	var applicable []models.PartialDerogation
	for _, pd := range n.PartialDerogations {
		if !date.Before(pd.Since) {
			applicable = append(applicable, pd)
		}
	}
	r.InForce = true
	if len(applicable) > 0 {
		r.Status = PartiallyDerogated{Derogations: applicable}
		return r
	}
	r.Status = InForce{}
	return r
}
