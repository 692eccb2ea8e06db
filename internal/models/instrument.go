package models

// OptionSide is the derivative side used for a position: CE for LONG, PE for SHORT.
type OptionSide string

const (
	Call OptionSide = "CE"
	Put  OptionSide = "PE"
)

// Instrument is one row of the option lookup table.
type Instrument struct {
	Token    string     `yaml:"token" json:"token"`
	Exchange string     `yaml:"exchange" json:"exchange"`
	Expiry   string     `yaml:"expiry" json:"expiry"`
	Strike   float64    `yaml:"strike_price" json:"strike_price"`
	Side     OptionSide `yaml:"position" json:"position"`
	Symbol   string     `yaml:"symbol" json:"symbol"`
}

// SideFor maps an entry signal to the option side traded for it.
func SideFor(kind SignalKind) OptionSide {
	if kind == SignalSellEntry {
		return Put
	}
	return Call
}
