package enrich

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suncrest-solar/leadscout/internal/model"
	"github.com/suncrest-solar/leadscout/pkg/places"
)

// nearbyRadiusM is the tight radius for the fallback nearby search. Wide
// enough to absorb centroid error, narrow enough to stay on the parcel.
const nearbyRadiusM = 50

// streetTokens are street-type words that mark a hit as an address echo
// rather than a business name.
var streetTokens = map[string]bool{
	"st": true, "street": true, "ave": true, "avenue": true, "rd": true,
	"road": true, "blvd": true, "boulevard": true, "dr": true, "drive": true,
	"ln": true, "lane": true, "ct": true, "court": true, "pkwy": true,
	"hwy": true, "way": true, "pl": true, "place": true,
}

var numericName = regexp.MustCompile(`^[\d\s\-#/]+$`)

// BusinessLookup runs the place-resolution waterfall against the Places API.
type BusinessLookup struct {
	client places.Client
}

// NewBusinessLookup creates a BusinessLookup.
func NewBusinessLookup(client places.Client) *BusinessLookup {
	return &BusinessLookup{client: client}
}

// Find resolves the business occupying a building, or nil when no usable
// candidate exists. The waterfall: (1) address-biased text search, rejected
// when the hit's name is an address echo; (2) nearby search in a tight
// radius; (3) give up. A chosen candidate is completed with a details fetch.
func (l *BusinessLookup) Find(ctx context.Context, rec *model.BuildingRecord) (*model.BusinessProfile, error) {
	var bias *places.Circle
	if rec.Location != nil {
		bias = &places.Circle{Lat: rec.Location.Lat, Lng: rec.Location.Lng, RadiusM: 100}
	}

	candidate, err := l.textStage(ctx, rec, bias)
	if err != nil {
		return nil, err
	}

	if candidate == nil && rec.Location != nil {
		candidate, err = l.nearbyStage(ctx, *rec.Location)
		if err != nil {
			return nil, err
		}
	}

	if candidate == nil {
		return nil, nil
	}
	return l.details(ctx, candidate)
}

func (l *BusinessLookup) textStage(ctx context.Context, rec *model.BuildingRecord, bias *places.Circle) (*places.Place, error) {
	query := rec.AddressRaw
	if query == "" {
		return nil, nil
	}

	hits, err := l.client.TextSearch(ctx, query, bias)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: text search stage")
	}
	if len(hits) == 0 {
		return nil, nil
	}

	hit := hits[0]
	if IsAddressLikeName(hit.DisplayName.Text) {
		zap.L().Debug("rejecting address-echo candidate",
			zap.String("name", hit.DisplayName.Text),
			zap.String("address", rec.AddressRaw))
		return nil, nil
	}
	return &hit, nil
}

func (l *BusinessLookup) nearbyStage(ctx context.Context, loc model.LatLng) (*places.Place, error) {
	hits, err := l.client.NearbySearch(ctx, places.Circle{
		Lat: loc.Lat, Lng: loc.Lng, RadiusM: nearbyRadiusM,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: nearby search stage")
	}

	for i := range hits {
		if !IsAddressLikeName(hits[i].DisplayName.Text) {
			return &hits[i], nil
		}
	}
	return nil, nil
}

func (l *BusinessLookup) details(ctx context.Context, candidate *places.Place) (*model.BusinessProfile, error) {
	full := candidate
	if candidate.ID != "" {
		fetched, err := l.client.Details(ctx, candidate.ID)
		if err != nil {
			return nil, eris.Wrap(err, "enrich: details fetch")
		}
		full = fetched
	}

	profile := &model.BusinessProfile{
		PlaceID:         full.ID,
		Name:            full.DisplayName.Text,
		Rating:          full.Rating,
		ReviewCount:     full.UserRatingCount,
		Website:         full.WebsiteURI,
		Phone:           full.NationalPhoneNumber,
		OperatingStatus: full.BusinessStatus,
		CategoryTags:    full.Types,
	}
	if profile.Empty() {
		return nil, nil
	}
	return profile, nil
}

// IsAddressLikeName reports whether a candidate name is purely numeric or an
// address echo ("100 State St") rather than a business name.
func IsAddressLikeName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || numericName.MatchString(trimmed) {
		return true
	}

	fields := strings.Fields(strings.ToLower(trimmed))
	if len(fields) < 2 {
		return false
	}

	// Leading house number plus a street-type token anywhere after it.
	if _, isNum := leadingNumber(fields[0]); !isNum {
		return false
	}
	for _, f := range fields[1:] {
		if streetTokens[strings.TrimRight(f, ".,")] {
			return true
		}
	}
	return false
}

func leadingNumber(s string) (string, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, s != ""
}
