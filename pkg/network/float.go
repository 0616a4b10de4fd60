package network

// Float returns a pointer to v. Convenience for populating optional
// elevation and depth attributes.
func Float(v float64) *float64 { return &v }
