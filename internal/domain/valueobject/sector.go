package valueobject

import (
	"fmt"
	"strings"
)

// Sector is the borrower's economic sector. It selects the sector risk
// strategy, the base interest rate and the recommendation thresholds.
type Sector string

const (
	SectorAgriculture Sector = "agriculture"
	SectorRetail      Sector = "retail"
	SectorTransport   Sector = "transport"
	SectorServices    Sector = "services"
	SectorArtisan     Sector = "artisan"
	SectorGigWork     Sector = "gig_work"
	SectorOther       Sector = "other"
)

var validSectors = map[Sector]struct{}{
	SectorAgriculture: {},
	SectorRetail:      {},
	SectorTransport:   {},
	SectorServices:    {},
	SectorArtisan:     {},
	SectorGigWork:     {},
	SectorOther:       {},
}

// ParseSector converts a raw string into a Sector. Matching is exact after
// trimming and lower-casing.
func ParseSector(s string) (Sector, error) {
	v := Sector(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validSectors[v]; !ok {
		return "", fmt.Errorf("invalid sector: %q", s)
	}
	return v, nil
}

// IsAgriculture reports whether the sector uses the agricultural risk model.
func (s Sector) IsAgriculture() bool { return s == SectorAgriculture }

func (s Sector) String() string { return string(s) }

// CropType identifies the primary crop of a farming borrower.
type CropType string

const (
	CropCoffee     CropType = "coffee"
	CropTea        CropType = "tea"
	CropCassava    CropType = "cassava"
	CropMatooke    CropType = "matooke"
	CropSorghum    CropType = "sorghum"
	CropBeans      CropType = "beans"
	CropMaize      CropType = "maize"
	CropRice       CropType = "rice"
	CropVegetables CropType = "vegetables"
	CropCotton     CropType = "cotton"
	CropOther      CropType = "other"
)

var knownCrops = map[CropType]struct{}{
	CropCoffee: {}, CropTea: {}, CropCassava: {}, CropMatooke: {},
	CropSorghum: {}, CropBeans: {}, CropMaize: {}, CropRice: {},
	CropVegetables: {}, CropCotton: {}, CropOther: {},
}

// ParseCropType converts a raw string into a CropType. An empty value is an
// error; any unrecognised crop maps to CropOther.
func ParseCropType(s string) (CropType, error) {
	v := CropType(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return "", fmt.Errorf("crop type is required")
	}
	if _, ok := knownCrops[v]; !ok {
		return CropOther, nil
	}
	return v, nil
}

func (c CropType) String() string { return string(c) }

// Season is the growing season a climate lookup refers to.
type Season string

const (
	SeasonDry     Season = "dry"
	SeasonWet     Season = "wet"
	SeasonUnknown Season = "unknown"
)

// ParseSeason converts a raw string into a Season; unknown input yields SeasonUnknown.
func ParseSeason(s string) Season {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case SeasonDry:
		return SeasonDry
	case SeasonWet:
		return SeasonWet
	default:
		return SeasonUnknown
	}
}

// IncomeConsistency describes how regular a borrower's income is.
type IncomeConsistency string

const (
	IncomeStable    IncomeConsistency = "stable"
	IncomeSeasonal  IncomeConsistency = "seasonal"
	IncomeIrregular IncomeConsistency = "irregular"
	IncomeUnknown   IncomeConsistency = "unknown"
)

// ParseIncomeConsistency converts a raw string; anything unrecognised is IncomeUnknown.
func ParseIncomeConsistency(s string) IncomeConsistency {
	switch v := IncomeConsistency(strings.ToLower(strings.TrimSpace(s))); v {
	case IncomeStable, IncomeSeasonal, IncomeIrregular:
		return v
	default:
		return IncomeUnknown
	}
}

// MarketAccess rates how easily a farmer can sell produce.
type MarketAccess string

const (
	MarketAccessGood     MarketAccess = "good"
	MarketAccessModerate MarketAccess = "moderate"
	MarketAccessPoor     MarketAccess = "poor"
	MarketAccessUnknown  MarketAccess = "unknown"
)

// ParseMarketAccess converts a raw string; anything unrecognised is MarketAccessUnknown.
func ParseMarketAccess(s string) MarketAccess {
	switch v := MarketAccess(strings.ToLower(strings.TrimSpace(s))); v {
	case MarketAccessGood, MarketAccessModerate, MarketAccessPoor:
		return v
	default:
		return MarketAccessUnknown
	}
}

// DisbursementChannel is how loan funds reach the borrower.
type DisbursementChannel string

const (
	ChannelMobileMoney DisbursementChannel = "mobile_money"
	ChannelBank        DisbursementChannel = "bank"
	ChannelCash        DisbursementChannel = "cash"
)

// ParseDisbursementChannel converts a raw string into a DisbursementChannel.
func ParseDisbursementChannel(s string) (DisbursementChannel, error) {
	switch v := DisbursementChannel(strings.ToLower(strings.TrimSpace(s))); v {
	case ChannelMobileMoney, ChannelBank, ChannelCash:
		return v, nil
	default:
		return "", fmt.Errorf("invalid disbursement channel: %q", s)
	}
}
