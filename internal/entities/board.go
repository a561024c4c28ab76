package entities

import "time"

// Board is everything one refresh cycle produced
type Board struct {
	CycleID    string            `json:"cycle_id"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Reservoirs []ReservoirReport `json:"reservoirs"`
	Sites      []SiteSnapshot    `json:"sites"`
}

// Reservoir returns the report with the given id
func (b Board) Reservoir(id string) (ReservoirReport, bool) {
	for _, r := range b.Reservoirs {
		if r.Reservoir == id {
			return r, true
		}
	}
	return ReservoirReport{}, false
}

// Site returns the snapshot with the given site number
func (b Board) Site(siteNo string) (SiteSnapshot, bool) {
	for _, s := range b.Sites {
		if s.Graph.SiteNo == siteNo {
			return s, true
		}
	}
	return SiteSnapshot{}, false
}
