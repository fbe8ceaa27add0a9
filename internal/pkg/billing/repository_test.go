package billing

import "testing"

func TestFindAccountByCustomerIDBlankID(t *testing.T) {
	// Blank IDs short-circuit before any query runs, so a repository
	// without a DB connection is enough to exercise the guard.
	repo := NewRepository(nil)

	for _, customerID := range []string{"", "   ", "\t"} {
		account, err := repo.FindAccountByCustomerID(customerID)
		if err != nil {
			t.Fatalf("FindAccountByCustomerID(%q): %v", customerID, err)
		}
		if account != nil {
			t.Fatalf("FindAccountByCustomerID(%q) = %+v, want nil", customerID, account)
		}
	}
}
