package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PositionSource identifies how a state vector's position was obtained.
type PositionSource int

const (
	SourceADSB PositionSource = iota
	SourceASTERIX
	SourceMLAT
	SourceFLARM
)

func (p PositionSource) String() string {
	switch p {
	case SourceADSB:
		return "ADS-B"
	case SourceASTERIX:
		return "ASTERIX"
	case SourceMLAT:
		return "MLAT"
	case SourceFLARM:
		return "FLARM"
	default:
		return fmt.Sprintf("PositionSource(%d)", int(p))
	}
}

// StateVector is one observation of one aircraft as reported by OpenSky.
// Every field is nil when the source sent null, and encodes back as null.
// Field order matches the wire format.
type StateVector struct {
	ICAO24         *string         `json:"icao24"`
	Callsign       *string         `json:"callsign"`
	OriginCountry  *string         `json:"origin_country"`
	TimePosition   *int64          `json:"time_position"`
	LastContact    *int64          `json:"last_contact"`
	Longitude      *float64        `json:"longitude"`
	Latitude       *float64        `json:"latitude"`
	BaroAltitude   *float64        `json:"baro_altitude"`
	OnGround       *bool           `json:"on_ground"`
	Velocity       *float64        `json:"velocity"`
	TrueTrack      *float64        `json:"true_track"`
	VerticalRate   *float64        `json:"vertical_rate"`
	Sensors        []int           `json:"sensors"`
	GeoAltitude    *float64        `json:"geo_altitude"`
	Squawk         *string         `json:"squawk"`
	SPI            *bool           `json:"spi"`
	PositionSource *PositionSource `json:"position_source"`
}

// Ptr returns a pointer to v, for building state vectors by hand.
func Ptr[T any](v T) *T { return &v }

// ID returns the icao24 address, or "" when the source sent none.
func (s StateVector) ID() string {
	if s.ICAO24 == nil {
		return ""
	}
	return *s.ICAO24
}

var ErrMalformedState = errors.New("malformed state vector")

// stateFields is the number of positional values OpenSky always sends.
// A trailing aircraft category may follow and is ignored.
const stateFields = 17

// Encode returns the JSON message body for s.
func (s StateVector) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state %s: %w", s.ID(), err)
	}
	return b, nil
}

// DecodeStateRow converts one positional row of the /states/all response.
// Nulls stay nil; only a non-array, a short row or a mistyped value fails.
func DecodeStateRow(raw json.RawMessage) (StateVector, error) {
	var row []json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return StateVector{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if len(row) < stateFields {
		return StateVector{}, fmt.Errorf("%w: %d fields, want at least %d", ErrMalformedState, len(row), stateFields)
	}

	var (
		s   StateVector
		err error
	)
	// Each assignment reports the first failure only.
	set := func(idx int, dst any, name string) {
		if err != nil || isNull(row[idx]) {
			return
		}
		if uerr := json.Unmarshal(row[idx], dst); uerr != nil {
			err = fmt.Errorf("%w: %s: %v", ErrMalformedState, name, uerr)
		}
	}

	set(0, &s.ICAO24, "icao24")
	set(1, &s.Callsign, "callsign")
	set(2, &s.OriginCountry, "origin_country")
	set(3, &s.TimePosition, "time_position")
	set(4, &s.LastContact, "last_contact")
	set(5, &s.Longitude, "longitude")
	set(6, &s.Latitude, "latitude")
	set(7, &s.BaroAltitude, "baro_altitude")
	set(8, &s.OnGround, "on_ground")
	set(9, &s.Velocity, "velocity")
	set(10, &s.TrueTrack, "true_track")
	set(11, &s.VerticalRate, "vertical_rate")
	set(12, &s.Sensors, "sensors")
	set(13, &s.GeoAltitude, "geo_altitude")
	set(14, &s.Squawk, "squawk")
	set(15, &s.SPI, "spi")
	set(16, &s.PositionSource, "position_source")
	if err != nil {
		return StateVector{}, err
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}
