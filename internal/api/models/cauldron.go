package models

import (
	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// CauldronResponse is the API representation of a monitored cauldron.
type CauldronResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	MaxVolume     float64   `json:"maxVolume"`
	FillRate      float64   `json:"fillRate"`
	DrainRate     float64   `json:"drainRate,omitempty"`
	CurrentVolume float64   `json:"currentVolume"`
	NodeID        string    `json:"nodeId"`
	Location      Point     `json:"location"`
	UpdatedAt     Timestamp `json:"updatedAt"`
}

// ReadingResponse is one level reading.
type ReadingResponse struct {
	CauldronID string    `json:"cauldronId"`
	Timestamp  Timestamp `json:"timestamp"`
	Volume     float64   `json:"volume"`
}

// IngestReadingsRequest is a batch of level readings to record.
type IngestReadingsRequest struct {
	Readings []ReadingInput `json:"readings" validate:"required,min=1"`
}

// ReadingInput is one level reading to record.
type ReadingInput struct {
	CauldronID string    `json:"cauldronId" validate:"required"`
	Timestamp  Timestamp `json:"timestamp" validate:"required"`
	Volume     float64   `json:"volume" validate:"gte=0"`
}

// FromCauldron converts a domain cauldron into its API representation.
func FromCauldron(c *cauldron.Cauldron) *CauldronResponse {
	return &CauldronResponse{
		ID:            c.ID,
		Name:          c.Name,
		MaxVolume:     c.MaxVolume,
		FillRate:      c.FillRate,
		DrainRate:     c.DrainRate,
		CurrentVolume: c.CurrentVolume,
		NodeID:        c.NodeID,
		Location:      Point{Lat: c.Location.Lat, Lon: c.Location.Lon},
		UpdatedAt:     Timestamp(c.UpdatedAt),
	}
}

// FromReading converts a domain reading into its API representation.
func FromReading(r cauldron.Reading) ReadingResponse {
	return ReadingResponse{
		CauldronID: r.CauldronID,
		Timestamp:  Timestamp(r.Timestamp),
		Volume:     r.Volume,
	}
}
