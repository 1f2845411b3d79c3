package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// ListingStatus is the listing state of a rental comp.
type ListingStatus string

const (
	StatusActive  ListingStatus = "active"
	StatusRemoved ListingStatus = "removed"
	StatusClosed  ListingStatus = "closed"
)

// StructureType is the building type of a property.
type StructureType string

const (
	StructureSingleFamily StructureType = "single_family"
	StructureMultiFamily  StructureType = "multi_family"
	StructureTownhouse    StructureType = "townhouse"
)

// OwnershipProfile buckets the number of homes held by a property's owner.
type OwnershipProfile string

const (
	OwnershipUnder100 OwnershipProfile = "<100"
	Ownership100To1k  OwnershipProfile = "100-1k"
	Ownership1kTo20k  OwnershipProfile = "1k-20k"
	OwnershipOver20k  OwnershipProfile = "20k+"
)

// addressFields are required on every PropertyDetails object.
var addressFields = []string{"city", "postal_code", "state", "street"}

// PropertyDetails describes a property. The address fields are always set.
type PropertyDetails struct {
	Street     string  `json:"street"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Unit       *string `json:"unit,omitempty"`

	AboveGradeSqft     *int     `json:"above_grade_sqft,omitempty"`
	BasementSqft       *int     `json:"basement_sqft,omitempty"`
	BathroomsFull      *int     `json:"bathrooms_full,omitempty"`
	BathroomsHalf      *int     `json:"bathrooms_half,omitempty"`
	BedroomsTotal      *int     `json:"bedrooms_total,omitempty"`
	GarageSpaces       *int     `json:"garage_spaces,omitempty"`
	HasPrivatePool     *bool    `json:"has_private_pool,omitempty"`
	IsInHOA            *bool    `json:"is_in_hoa,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	LivingAreaSqft     *int     `json:"living_area_sqft,omitempty"`
	LotSizeSqft        *int     `json:"lot_size_sqft,omitempty"`
	NumExteriorStories *int     `json:"num_exterior_stories,omitempty"`
	OwnershipProfile   *string  `json:"ownership_profile,omitempty"`
	Slug               *string  `json:"slug,omitempty"`
	StructureType      *string  `json:"structure_type,omitempty"`
	SubdivisionName    *string  `json:"subdivision_name,omitempty"`
	YearBuilt          *int     `json:"year_built,omitempty"`
}

// PropertyDetailsResult is the property details outcome for one address.
type PropertyDetailsResult struct {
	Token           string           `json:"token,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	PropertyDetails *PropertyDetails `json:"property_details,omitempty"`
}

// PropertyValue is a valuation with its confidence interval.
type PropertyValue struct {
	Value     int `json:"value"`
	ValueHigh int `json:"value_high"`
	ValueLow  int `json:"value_low"`
}

// PropertyValueResult is the valuation outcome for one address.
type PropertyValueResult struct {
	Token         string         `json:"token,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	PropertyValue *PropertyValue `json:"property_value,omitempty"`
}

// RentEstimate is a monthly rent estimate with its confidence interval.
type RentEstimate struct {
	EstimatedRent     int `json:"estimated_rent"`
	EstimatedRentHigh int `json:"estimated_rent_high"`
	EstimatedRentLow  int `json:"estimated_rent_low"`
}

// RentEstimateResult is the rent estimate outcome for one address.
// A nil RentEstimate means the address could not be resolved.
type RentEstimateResult struct {
	Token        string        `json:"token,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	RentEstimate *RentEstimate `json:"rent_estimate,omitempty"`
}

// RentalComp is one comparable rental listing.
type RentalComp struct {
	ClosePrice           *int             `json:"close_price,omitempty"`
	ClosePriceDate       *Date            `json:"close_price_date,omitempty"`
	DistanceMiles        *float64         `json:"distance_miles,omitempty"`
	DOM                  *int             `json:"dom,omitempty"`
	InitialListPrice     *int             `json:"initial_list_price,omitempty"`
	InitialListPriceDate *Date            `json:"initial_list_price_date,omitempty"`
	LastEventDate        *Date            `json:"last_event_date,omitempty"`
	LastListPrice        *int             `json:"last_list_price,omitempty"`
	ListingStatus        *ListingStatus   `json:"listing_status,omitempty"`
	MoveOutDate          *Date            `json:"move_out_date,omitempty"`
	OwnershipProfile     *string          `json:"ownership_profile,omitempty"`
	PropertyDetails      *PropertyDetails `json:"property_details,omitempty"`
	ResponseCodes        []string         `json:"response_codes,omitempty"`
	SimilarityScore      *float64         `json:"similarity_score,omitempty"`
}

// RentalCompsResult is the rental comps outcome for one address.
//
// APICode is an HTTP-like status for the address: 200 success, 204 no comps,
// 503 dependency unavailable, 422 unsupported filter, 500 anything else. A
// code sent by the server is kept as is. HasErrors is set for failure codes.
type RentalCompsResult struct {
	RentalComps            []RentalComp     `json:"rental_comps"`
	Token                  string           `json:"token,omitempty"`
	ErrorMessage           string           `json:"error_message,omitempty"`
	APICode                int              `json:"api_code,omitempty"`
	HasErrors              bool             `json:"has_errors"`
	SubjectPropertyDetails *PropertyDetails `json:"subject_property_details,omitempty"`
}

// Outcome returns the classification of the result.
// An unclassified result is classified with DefaultClassifier.
func (r RentalCompsResult) Outcome() Outcome {
	if r.APICode == 0 {
		return DefaultClassifier(r.ErrorMessage)
	}
	return OutcomeForCode(r.APICode)
}
