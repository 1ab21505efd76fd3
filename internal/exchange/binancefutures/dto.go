package binancefutures

import (
	"strconv"

	"futurespipeline/internal/exchange"

	"github.com/shopspring/decimal"
)

type orderDTO struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	PositionSide  string `json:"positionSide"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	ReduceOnly    bool   `json:"reduceOnly"`
}

func (o orderDTO) toDomain() exchange.Order {
	price, _ := decimal.NewFromString(o.Price)
	stop, _ := decimal.NewFromString(o.StopPrice)
	orig, _ := decimal.NewFromString(o.OrigQty)
	exec, _ := decimal.NewFromString(o.ExecutedQty)
	return exchange.Order{
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Sym:           o.Symbol,
		Side:          exchange.Side(o.Side),
		PositionSide:  exchange.PositionSide(o.PositionSide),
		Type:          exchange.OrderType(o.Type),
		Status:        o.Status,
		Price:         price,
		StopPrice:     stop,
		OrigQty:       orig,
		ExecutedQty:   exec,
		ReduceOnly:    o.ReduceOnly,
	}
}

type positionDTO struct {
	Symbol           string `json:"symbol"`
	PositionSide     string `json:"positionSide"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
}

func (p positionDTO) toDomain() exchange.Position {
	amt, _ := decimal.NewFromString(p.PositionAmt)
	entry, _ := decimal.NewFromString(p.EntryPrice)
	pnl, _ := decimal.NewFromString(p.UnRealizedProfit)
	return exchange.Position{
		Sym:           p.Symbol,
		PositionSide:  exchange.PositionSide(p.PositionSide),
		PositionAmt:   amt,
		EntryPrice:    entry,
		UnrealizedPnL: pnl,
	}
}

type balanceDTO struct {
	Asset            string `json:"asset"`
	AvailableBalance string `json:"availableBalance"`
}

func toOrderParams(req exchange.OrderRequest) map[string]string {
	p := map[string]string{
		"symbol":           req.Sym,
		"side":             string(req.Side),
		"type":             string(req.Type),
		"newClientOrderId": req.ClientOrderID,
	}
	if req.PositionSide != "" {
		p["positionSide"] = string(req.PositionSide)
	}
	if !req.Quantity.IsZero() {
		p["quantity"] = req.Quantity.String()
	}
	if !req.Price.IsZero() {
		p["price"] = req.Price.String()
	}
	if !req.StopPrice.IsZero() {
		p["stopPrice"] = req.StopPrice.String()
	}
	if req.TimeInForce != "" {
		p["timeInForce"] = string(req.TimeInForce)
	}
	if req.WorkingType != "" {
		p["workingType"] = string(req.WorkingType)
	}
	if req.ReduceOnly {
		p["reduceOnly"] = "true"
	}
	if req.ClosePosition {
		p["closePosition"] = "true"
	}
	return p
}
