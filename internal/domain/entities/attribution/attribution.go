// Package attribution defines marketing attribution snapshots.
package attribution

import "time"

// ClickIDs holds platform-specific paid-click identifiers.
type ClickIDs struct {
	Gclid  string `json:"gclid,omitempty"`
	Gbraid string `json:"gbraid,omitempty"`
	Wbraid string `json:"wbraid,omitempty"`
	Fbclid string `json:"fbclid,omitempty"`
}

// Snapshot captures the marketing parameters observed on one landing.
// Two named instances persist per profile: first touch (write-once) and
// last touch (overwritten whenever new parameters are observed).
type Snapshot struct {
	UTMSource   string    `json:"utmSource,omitempty"`
	UTMMedium   string    `json:"utmMedium,omitempty"`
	UTMCampaign string    `json:"utmCampaign,omitempty"`
	UTMTerm     string    `json:"utmTerm,omitempty"`
	UTMContent  string    `json:"utmContent,omitempty"`
	ClickIDs    ClickIDs  `json:"clickIds"`
	Referrer    string    `json:"referrer,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	LandingPage string    `json:"landingPage,omitempty"`
}

// HasParams reports whether any UTM field or click ID was captured.
// A referrer alone does not count as parameters.
func (s *Snapshot) HasParams() bool {
	return s.UTMSource != "" || s.UTMMedium != "" || s.UTMCampaign != "" ||
		s.UTMTerm != "" || s.UTMContent != "" ||
		s.ClickIDs.Gclid != "" || s.ClickIDs.Gbraid != "" ||
		s.ClickIDs.Wbraid != "" || s.ClickIDs.Fbclid != ""
}

// IsEmpty reports whether the snapshot carries no attribution data at all.
func (s *Snapshot) IsEmpty() bool {
	return !s.HasParams() && s.Referrer == ""
}
