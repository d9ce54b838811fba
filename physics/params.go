package physics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/TFMV/sitegraph/models"
)

var validate = validator.New()

// Params holds the tunable constants of one layout step
type Params struct {
	RepulsiveK  float64 `json:"repulsive_k" yaml:"repulsive_k"`
	AttractiveK float64 `json:"attractive_k" yaml:"attractive_k"`
	Margin      float64 `json:"margin" yaml:"margin" validate:"gte=0,lt=1"`
	Smoothing   float64 `json:"smoothing" yaml:"smoothing" validate:"gt=0,lte=1"`
}

// DefaultParams returns constants tuned for a few hundred nodes stepped once
// per rendered frame
func DefaultParams() Params {
	return Params{
		RepulsiveK:  0.0005,
		AttractiveK: 0.0005,
		Margin:      0.1,
		Smoothing:   0.01,
	}
}

// Validate checks the margin and smoothing domains. Violations wrap
// models.ErrInvalidParameter.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s=%v fails %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("%w: %s", models.ErrInvalidParameter, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidParameter, err)
	}
	return nil
}
