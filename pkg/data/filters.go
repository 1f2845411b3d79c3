package data

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// NumericFilter bounds a numeric attribute either by an absolute range
// (Min and Max) or relative to the subject property (Relative).
type NumericFilter struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Relative *float64 `json:"relative,omitempty"`
}

// Range returns a filter admitting values in [min, max].
func Range(min, max float64) *NumericFilter {
	return &NumericFilter{Min: &min, Max: &max}
}

// Relative returns a filter admitting values within delta of the subject property.
func Relative(delta float64) *NumericFilter {
	return &NumericFilter{Relative: &delta}
}

func (f *NumericFilter) validate(name string) error {
	if f == nil {
		return nil
	}
	if f.Relative != nil {
		if f.Min != nil || f.Max != nil {
			return fmt.Errorf("%w: %s: relative cannot be combined with min/max", ErrInvalidOptions, name)
		}
		return finite(name+".relative", *f.Relative)
	}
	if f.Min == nil || f.Max == nil {
		return fmt.Errorf("%w: %s: range needs both min and max", ErrInvalidOptions, name)
	}
	if err := finite(name+".min", *f.Min); err != nil {
		return err
	}
	if err := finite(name+".max", *f.Max); err != nil {
		return err
	}
	if *f.Min > *f.Max {
		return fmt.Errorf("%w: %s: min %g > max %g", ErrInvalidOptions, name, *f.Min, *f.Max)
	}
	return nil
}

// DateFilter bounds the comp event date either by a date range or by a
// number of days relative to today.
type DateFilter struct {
	Min      string   `json:"min,omitempty"`
	Max      string   `json:"max,omitempty"`
	Relative *float64 `json:"relative,omitempty"`
}

// DateRange returns a filter admitting dates in [min, max].
func DateRange(min, max time.Time) *DateFilter {
	return &DateFilter{Min: min.Format(DateLayout), Max: max.Format(DateLayout)}
}

// RelativeDays returns a filter admitting events within the last days days.
func RelativeDays(days float64) *DateFilter {
	return &DateFilter{Relative: &days}
}

func (f *DateFilter) validate() error {
	if f == nil {
		return nil
	}
	if f.Relative != nil {
		if f.Min != "" || f.Max != "" {
			return fmt.Errorf("%w: date: relative cannot be combined with min/max", ErrInvalidOptions)
		}
		return finite("date.relative", *f.Relative)
	}
	if f.Min == "" || f.Max == "" {
		return fmt.Errorf("%w: date: range needs both min and max", ErrInvalidOptions)
	}
	min, err := time.Parse(DateLayout, f.Min)
	if err != nil {
		return fmt.Errorf("%w: date.min: %v", ErrInvalidOptions, err)
	}
	max, err := time.Parse(DateLayout, f.Max)
	if err != nil {
		return fmt.Errorf("%w: date.max: %v", ErrInvalidOptions, err)
	}
	if min.After(max) {
		return fmt.Errorf("%w: date: min %s after max %s", ErrInvalidOptions, f.Min, f.Max)
	}
	return nil
}

// Filters narrows the rental comps search. A nil *Filters searches all comps.
type Filters struct {
	BathroomsFull  *NumericFilter `json:"bathrooms_full,omitempty"`
	BathroomsHalf  *NumericFilter `json:"bathrooms_half,omitempty"`
	BedroomsTotal  *NumericFilter `json:"bedrooms_total,omitempty"`
	LivingAreaSqft *NumericFilter `json:"living_area_sqft,omitempty"`
	YearBuilt      *NumericFilter `json:"year_built,omitempty"`
	Date           *DateFilter    `json:"date,omitempty"`

	// Distance is the search radius in miles, in (0, 25].
	Distance *float64 `json:"distance,omitempty"`

	// MinSimilarityScore is in [0, 1].
	MinSimilarityScore *float64 `json:"min_similarity_score,omitempty"`

	OwnershipProfiles []OwnershipProfile `json:"ownership_profiles,omitempty"`
	Statuses          []ListingStatus    `json:"statuses,omitempty"`
	StructureTypes    []StructureType    `json:"structure_types,omitempty"`
}

var (
	validOwnershipProfiles = []OwnershipProfile{OwnershipUnder100, Ownership100To1k, Ownership1kTo20k, OwnershipOver20k}
	validStatuses          = []ListingStatus{StatusActive, StatusRemoved, StatusClosed}
	validStructureTypes    = []StructureType{StructureSingleFamily, StructureMultiFamily, StructureTownhouse}
)

// Validate checks every filter against the ranges and values the endpoint accepts.
func (f *Filters) Validate() error {
	if f == nil {
		return nil
	}

	numeric := []struct {
		name   string
		filter *NumericFilter
	}{
		{"bathrooms_full", f.BathroomsFull},
		{"bathrooms_half", f.BathroomsHalf},
		{"bedrooms_total", f.BedroomsTotal},
		{"living_area_sqft", f.LivingAreaSqft},
		{"year_built", f.YearBuilt},
	}
	for _, n := range numeric {
		if err := n.filter.validate(n.name); err != nil {
			return err
		}
	}
	if err := f.Date.validate(); err != nil {
		return err
	}

	if f.Distance != nil {
		if d := *f.Distance; math.IsNaN(d) || d <= 0 || d > 25 {
			return fmt.Errorf("%w: distance must be in (0, 25] (got %g)", ErrInvalidOptions, d)
		}
	}
	if f.MinSimilarityScore != nil {
		if s := *f.MinSimilarityScore; math.IsNaN(s) || s < 0 || s > 1 {
			return fmt.Errorf("%w: min_similarity_score must be in [0, 1] (got %g)", ErrInvalidOptions, s)
		}
	}

	if err := oneOf("ownership_profiles", f.OwnershipProfiles, validOwnershipProfiles); err != nil {
		return err
	}
	if err := oneOf("statuses", f.Statuses, validStatuses); err != nil {
		return err
	}
	return oneOf("structure_types", f.StructureTypes, validStructureTypes)
}

func oneOf[T ~string](name string, values, allowed []T) error {
	for _, v := range values {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("%w: %s: unknown value %q", ErrInvalidOptions, name, v)
		}
	}
	return nil
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidOptions, name)
	}
	return nil
}
