package model

// Customer is one row of the master customer table that curation suggestions
// are scored against. CustomerID is an exact-match identifier (for payroll
// sources a 9-digit SSN, leading zeros included) and is compared as a string,
// never numerically.
type Customer struct {
	ClientID    int64
	CustomerID  string
	Name        string
	CompanyName string
}
