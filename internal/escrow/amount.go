package escrow

import (
	"fmt"
	"math/big"
	"strconv"
)

// Amount is the JSON form of a *big.Int amount. It encodes as a decimal
// string so clients that read JSON numbers as floats keep every digit, and
// decodes from a decimal string or a plain number.
type Amount big.Int

// AmountOf views v as an Amount. A nil v is zero.
func AmountOf(v *big.Int) *Amount {
	if v == nil {
		v = new(big.Int)
	}
	return (*Amount)(v)
}

// optionalAmount is AmountOf that keeps nil, for omitempty fields.
func optionalAmount(v *big.Int) *Amount {
	if v == nil {
		return nil
	}
	return (*Amount)(v)
}

// Int returns the amount as a *big.Int sharing its storage.
func (a *Amount) Int() *big.Int { return (*big.Int)(a) }

func (a *Amount) String() string {
	if a == nil {
		return "0"
	}
	return a.Int().String()
}

func (a *Amount) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid amount %s", b)
	}
	a.Int().Set(v)
	return nil
}
