package model

// ScanInfo is the metadata carried by a scan lifecycle signal.
type ScanInfo struct {
	// ID identifies the scan (or the session it belongs to).
	ID string `json:"scanId"`

	// Target is the URL the scan started from.
	// The reconciliation worker snapshots this page.
	Target string `json:"target"`
}

// IsZero reports whether s carries no metadata at all.
func (s ScanInfo) IsZero() bool {
	return s.ID == "" && s.Target == ""
}
