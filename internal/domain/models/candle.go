package models

// Candle is one OHLCV bar. Timestamp is the open time in unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Tick is a live kline update from the market stream.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Candle    Candle  `json:"candle"`
	Closed    bool    `json:"closed"`
	Price     float64 `json:"price"`
}

// Closes returns the close prices in order.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// Volumes returns the volumes in order.
func Volumes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Volume
	}
	return out
}
