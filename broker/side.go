package broker

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) Opposite() Side {
	return -s
}

// Sign is +1 for Buy and -1 for Sell.
func (s Side) Sign() decimal.Decimal {
	return decimal.NewFromInt(int64(s))
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int8(s))
	}
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy", "long":
		return Buy, nil
	case "sell", "short":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", v)
	}
}

type InstrumentKind string

const (
	Equity  InstrumentKind = "equity"
	Futures InstrumentKind = "futures"
	Options InstrumentKind = "options"
	Crypto  InstrumentKind = "crypto"
	FX      InstrumentKind = "fx"
)

func (k InstrumentKind) Validate() error {
	switch k {
	case Equity, Futures, Options, Crypto, FX:
		return nil
	default:
		return fmt.Errorf("invalid instrument kind: %q", string(k))
	}
}
