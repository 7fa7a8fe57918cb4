// Package validation provides struct-tag validation for composition values.
//
// The composition factory validates every caller-constructed Composition
// before execution. Tags follow the validator library conventions:
//
//	type Composition struct {
//	    ID      string `json:"id" validate:"required"`
//	    Pattern Pattern `json:"pattern" validate:"required"`
//	}
//	err := validation.Validate(comp)
package validation
