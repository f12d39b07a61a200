package shared

const (
	// Default pagination
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"

	// Record status
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ValidStatus reports whether status is a known record status.
func ValidStatus(status string) bool {
	return status == StatusActive || status == StatusInactive
}
