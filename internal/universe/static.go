package universe

// reliableSymbols is the default screening universe: NIFTY large caps that
// the upstream history API serves consistently.
var reliableSymbols = []string{
	"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "ICICIBANK.NS",
	"HINDUNILVR.NS", "SBIN.NS", "BHARTIARTL.NS", "ITC.NS", "KOTAKBANK.NS",
	"LT.NS", "BAJFINANCE.NS", "AXISBANK.NS", "ASIANPAINT.NS", "MARUTI.NS",
	"TITAN.NS", "SUNPHARMA.NS", "ULTRACEMCO.NS", "TATASTEEL.NS", "NTPC.NS",
	"WIPRO.NS", "HCLTECH.NS", "TECHM.NS", "POWERGRID.NS", "ONGC.NS",
	"COALINDIA.NS", "JSWSTEEL.NS", "HINDALCO.NS", "ADANIPORTS.NS", "ADANIENT.NS",
	"NESTLEIND.NS", "BRITANNIA.NS", "CIPLA.NS", "DRREDDY.NS", "DIVISLAB.NS",
	"GRASIM.NS", "INDUSINDBK.NS", "BAJAJFINSV.NS", "M&M.NS", "EICHERMOT.NS",
	"HEROMOTOCO.NS", "BAJAJ-AUTO.NS", "APOLLOHOSP.NS", "BPCL.NS", "TATACONSUM.NS",
	"SBILIFE.NS", "HDFCLIFE.NS", "LTIM.NS", "SHRIRAMFIN.NS", "TRENT.NS",
}

// minimalSymbols is returned when nothing else could be resolved.
var minimalSymbols = []string{
	"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "ICICIBANK.NS",
}

var displayNames = map[string]string{
	"RELIANCE.NS":   "Reliance Industries",
	"TCS.NS":        "Tata Consultancy Services",
	"HDFCBANK.NS":   "HDFC Bank",
	"INFY.NS":       "Infosys",
	"ICICIBANK.NS":  "ICICI Bank",
	"HINDUNILVR.NS": "Hindustan Unilever",
	"SBIN.NS":       "State Bank of India",
	"BHARTIARTL.NS": "Bharti Airtel",
	"ITC.NS":        "ITC Limited",
	"KOTAKBANK.NS":  "Kotak Mahindra Bank",
	"LT.NS":         "Larsen & Toubro",
	"BAJFINANCE.NS": "Bajaj Finance",
	"AXISBANK.NS":   "Axis Bank",
	"ASIANPAINT.NS": "Asian Paints",
	"MARUTI.NS":     "Maruti Suzuki",
	"TITAN.NS":      "Titan Company",
	"SUNPHARMA.NS":  "Sun Pharmaceutical",
	"ULTRACEMCO.NS": "UltraTech Cement",
	"TATASTEEL.NS":  "Tata Steel",
	"NTPC.NS":       "NTPC Limited",
	"WIPRO.NS":      "Wipro",
	"HCLTECH.NS":    "HCL Technologies",
	"TECHM.NS":      "Tech Mahindra",
	"POWERGRID.NS":  "Power Grid Corporation",
	"ONGC.NS":       "Oil & Natural Gas Corporation",
	"COALINDIA.NS":  "Coal India",
	"JSWSTEEL.NS":   "JSW Steel",
	"HINDALCO.NS":   "Hindalco Industries",
	"ADANIPORTS.NS": "Adani Ports and SEZ",
	"ADANIENT.NS":   "Adani Enterprises",
	"NESTLEIND.NS":  "Nestle India",
	"BRITANNIA.NS":  "Britannia Industries",
	"CIPLA.NS":      "Cipla",
	"DRREDDY.NS":    "Dr. Reddy's Laboratories",
	"DIVISLAB.NS":   "Divi's Laboratories",
	"GRASIM.NS":     "Grasim Industries",
	"INDUSINDBK.NS": "IndusInd Bank",
	"BAJAJFINSV.NS": "Bajaj Finserv",
	"M&M.NS":        "Mahindra & Mahindra",
	"EICHERMOT.NS":  "Eicher Motors",
	"HEROMOTOCO.NS": "Hero MotoCorp",
	"BAJAJ-AUTO.NS": "Bajaj Auto",
	"APOLLOHOSP.NS": "Apollo Hospitals",
	"BPCL.NS":       "Bharat Petroleum",
	"TATACONSUM.NS": "Tata Consumer Products",
	"SBILIFE.NS":    "SBI Life Insurance",
	"HDFCLIFE.NS":   "HDFC Life Insurance",
	"LTIM.NS":       "LTIMindtree",
	"SHRIRAMFIN.NS": "Shriram Finance",
	"TRENT.NS":      "Trent",
}

// DisplayName returns the known name for symbol, or the ticker without its
// exchange suffix.
func DisplayName(symbol string) string {
	if n, ok := displayNames[Normalize(symbol)]; ok {
		return n
	}
	return Strip(symbol)
}
