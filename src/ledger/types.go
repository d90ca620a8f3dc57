package ledger

import (
	"math"
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
)

// BaseAsset is the name under which balances of the base currency are
// reported.
const BaseAsset = "bytes"

// Author is an address which signed a unit.
type Author struct {
	Address    string `json:"address"`
	Definition string `json:"definition,omitempty"`
}

// Input spends an earlier output.
type Input struct {
	Unit         string `json:"unit"`
	MessageIndex int    `json:"message_index"`
	OutputIndex  int    `json:"output_index"`
	Address      string `json:"address"`
	Amount       int64  `json:"amount"`
}

// Output transfers an amount to an address.
type Output struct {
	Unit         string `json:"unit,omitempty"`
	MessageIndex int    `json:"message_index"`
	OutputIndex  int    `json:"output_index"`
	Address      string `json:"address"`
	Amount       int64  `json:"amount"`
	Asset        string `json:"asset,omitempty"`
}

// Payment is the payload of a payment message. An empty Asset is the base
// asset.
type Payment struct {
	Asset   string   `json:"asset,omitempty"`
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// Message is an application message carried by a unit.
type Message struct {
	App             string   `json:"app"`
	PayloadLocation string   `json:"payload_location"`
	Payment         *Payment `json:"payment,omitempty"`
	Text            string   `json:"text,omitempty"`
}

// Unit is the full record of a unit as mirrored by the explorer.
type Unit struct {
	graph.Node

	Parents               []string  `json:"parents"`
	BestParent            string    `json:"best_parent_unit"`
	Authors               []Author  `json:"authors"`
	Witnesses             []string  `json:"witnesses,omitempty"`
	Messages              []Message `json:"messages,omitempty"`
	Level                 int64     `json:"level"`
	WitnessedLevel        int64     `json:"witnessed_level"`
	MainChainIndex        int64     `json:"main_chain_index"`
	LatestIncludedMCIndex int64     `json:"latest_included_mc_index"`
	LastBallUnit          string    `json:"last_ball_unit,omitempty"`
	HeadersCommission     int64     `json:"headers_commission"`
	PayloadCommission     int64     `json:"payload_commission"`
	Timestamp             int64     `json:"timestamp"`
}

// Edges returns the parenthood edges of the unit.
func (u *Unit) Edges() []graph.Edge {
	res := make([]graph.Edge, len(u.Parents))
	for i, p := range u.Parents {
		res[i] = graph.Edge{
			Source:     u.ID,
			Target:     p,
			BestParent: p == u.BestParent,
		}
	}
	return res
}

// UnitInfo is the detail view of a unit.
type UnitInfo struct {
	Unit                  string         `json:"unit"`
	Ordinal               int64          `json:"ordinal"`
	Parents               []string       `json:"parents"`
	Children              []string       `json:"children"`
	Authors               []Author       `json:"authors"`
	Witnesses             []string       `json:"witnesses"`
	Messages              []Message      `json:"messages"`
	MainChainIndex        int64          `json:"main_chain_index"`
	LatestIncludedMCIndex int64          `json:"latest_included_mc_index"`
	Level                 int64          `json:"level"`
	WitnessedLevel        int64          `json:"witnessed_level"`
	OnMainChain           bool           `json:"is_on_main_chain"`
	Stable                bool           `json:"is_stable"`
	LastBallUnit          string         `json:"last_ball_unit"`
	HeadersCommission     int64          `json:"headers_commission"`
	PayloadCommission     int64          `json:"payload_commission"`
	Sequence              graph.Sequence `json:"sequence"`
	Date                  time.Time      `json:"date"`
}

// Transaction is a unit seen from an address.
type Transaction struct {
	Unit     string         `json:"unit"`
	Ordinal  int64          `json:"ordinal"`
	Date     time.Time      `json:"date"`
	Stable   bool           `json:"is_stable"`
	Sequence graph.Sequence `json:"sequence"`
	From     []Input        `json:"from"`
	To       []Output       `json:"to"`
}

// Cursor pages through the activity of an address. Inputs and Outputs are
// the ordinals below which the next page starts, on the spending and on the
// receiving side.
type Cursor struct {
	Inputs  int64 `json:"inputs"`
	Outputs int64 `json:"outputs"`
}

// FirstCursor returns the cursor of the first page.
func FirstCursor() Cursor {
	return Cursor{Inputs: math.MaxInt64, Outputs: math.MaxInt64}
}

// AddressActivity is one page of the activity of an address.
type AddressActivity struct {
	Address      string           `json:"address"`
	Definition   string           `json:"definition,omitempty"`
	Balance      map[string]int64 `json:"balance"`
	Unspent      []Output         `json:"unspent"`
	Transactions []Transaction    `json:"transactions"`
	Cursor       Cursor           `json:"cursor"`
	End          bool             `json:"end"`
}
