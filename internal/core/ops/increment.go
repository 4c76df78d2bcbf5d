package ops

import (
	"fmt"
)

// Increment adds Amount to a numeric field. An unset field counts as zero.
type Increment struct {
	Amount any
}

// NewIncrement validates amount as a number.
func NewIncrement(amount any) (*Increment, error) {
	n, ok := toNumber(amount)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidAmount, amount)
	}
	return &Increment{Amount: n}, nil
}

func (o *Increment) Apply(old any, key string) (any, error) {
	if old == nil {
		n, _ := toNumber(o.Amount)
		return n, nil
	}
	sum, ok := addNumbers(old, o.Amount)
	if !ok {
		return nil, mismatch(o, key, old)
	}
	return sum, nil
}

func (o *Increment) MergeWithPrevious(previous Operation) (Operation, error) {
	switch prev := previous.(type) {
	case nil:
		return o, nil
	case *Delete:
		n, _ := toNumber(o.Amount)
		return NewSet(n), nil
	case *Set:
		if prev.Value == nil {
			n, _ := toNumber(o.Amount)
			return NewSet(n), nil
		}
		sum, ok := addNumbers(prev.Value, o.Amount)
		if !ok {
			return nil, fmt.Errorf("%w: cannot increment %T", invalidMerge(o, previous), prev.Value)
		}
		return NewSet(sum), nil
	case *Increment:
		sum, ok := addNumbers(prev.Amount, o.Amount)
		if !ok {
			return nil, invalidMerge(o, previous)
		}
		return &Increment{Amount: sum}, nil
	default:
		return nil, invalidMerge(o, previous)
	}
}

func (o *Increment) Encode(_ ValueEncoder) (any, error) {
	return map[string]any{"__op": "Increment", "amount": o.Amount}, nil
}

func (o *Increment) String() string { return fmt.Sprintf("Increment(%v)", o.Amount) }
