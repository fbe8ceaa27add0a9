package viewmodel

// Layout carries the fields every page template needs.
type Layout struct {
	Title      string
	IsLoggedIn bool
	Username   string
	IsAdmin    bool
	Tier       string
	CSRFToken  string
}
