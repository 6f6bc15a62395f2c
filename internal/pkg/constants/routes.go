package constants

// Static route constants
const (
	AdminRoute      = "/admin"
	AdminLoginRoute = "/admin/login"
	// Public invoice pages live under this prefix, followed by the token
	InvoiceRoute = "/invoice"
)
