package screener

// fallbackCapsCr holds approximate market capitalizations in crore for
// large NSE listings, used when the live quote is unavailable.
var fallbackCapsCr = map[string]float64{
	"RELIANCE.NS":   1_900_000,
	"TCS.NS":        1_400_000,
	"HDFCBANK.NS":   1_250_000,
	"BHARTIARTL.NS": 900_000,
	"ICICIBANK.NS":  880_000,
	"INFY.NS":       650_000,
	"SBIN.NS":       720_000,
	"HINDUNILVR.NS": 560_000,
	"ITC.NS":        530_000,
	"LT.NS":         480_000,
	"BAJFINANCE.NS": 440_000,
	"KOTAKBANK.NS":  360_000,
	"HCLTECH.NS":    420_000,
	"MARUTI.NS":     390_000,
	"SUNPHARMA.NS":  400_000,
	"M&M.NS":        370_000,
	"AXISBANK.NS":   350_000,
	"ULTRACEMCO.NS": 320_000,
	"NTPC.NS":       340_000,
	"TITAN.NS":      300_000,
	"ONGC.NS":       330_000,
	"ADANIENT.NS":   290_000,
	"POWERGRID.NS":  290_000,
	"TATAMOTORS.NS": 270_000,
	"WIPRO.NS":      260_000,
	"ASIANPAINT.NS": 230_000,
	"COALINDIA.NS":  250_000,
	"BAJAJ-AUTO.NS": 250_000,
	"NESTLEIND.NS":  220_000,
	"JSWSTEEL.NS":   230_000,
	"TATASTEEL.NS":  190_000,
	"LTIM.NS":       160_000,
	"TECHM.NS":      150_000,
	"GRASIM.NS":     170_000,
	"HINDALCO.NS":   150_000,
	"SBILIFE.NS":    150_000,
	"HDFCLIFE.NS":   150_000,
	"DRREDDY.NS":    105_000,
	"CIPLA.NS":      120_000,
	"BRITANNIA.NS":  125_000,
	"EICHERMOT.NS":  135_000,
	"APOLLOHOSP.NS": 100_000,
	"TATACONSUM.NS": 105_000,
	"DIVISLAB.NS":   150_000,
	"HEROMOTOCO.NS": 90_000,
	"INDUSINDBK.NS": 75_000,
	"BPCL.NS":       130_000,
	"SHRIRAMFIN.NS": 120_000,
	"ADANIPORTS.NS": 290_000,
	"BAJAJFINSV.NS": 310_000,
}
