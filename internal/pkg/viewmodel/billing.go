package viewmodel

// BillingOverview backs the subscription page.
type BillingOverview struct {
	Tier            string // display label, "None" when unsubscribed
	Country         string
	Credits         float64
	NextBillingDate string // formatted date, "" when unknown
	AutoTopupActive bool
	AutoTopupAmount float64
	HasPaymentCard  bool
}

// UsagePoint is one entry on the usage graph.
type UsagePoint struct {
	Timestamp int64   `json:"timestamp"`
	Credits   float64 `json:"credits"`
}

// ConnectionView is one row in the connections list.
type ConnectionView struct {
	Service string
	Status  string
	Handle  string
}
