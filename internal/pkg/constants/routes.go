package constants

// Static route constants
const (
	PublicRoute    = "/"
	DashboardRoute = "/user/dashboard"
	BillingRoute   = "/user/billing"
	LoginRoute     = "/login"
)
