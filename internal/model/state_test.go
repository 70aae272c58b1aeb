package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleRow = `["4b1815","SWR736  ","Switzerland",1700000000,1700000001,8.5492,47.4520,1120.14,false,98.42,272.1,-4.23,null,1158.24,"1000",false,0]`

var wireKeys = []string{
	"icao24", "callsign", "origin_country", "time_position", "last_contact",
	"longitude", "latitude", "baro_altitude", "on_ground", "velocity",
	"true_track", "vertical_rate", "sensors", "geo_altitude", "squawk",
	"spi", "position_source",
}

func TestDecodeStateRow(t *testing.T) {
	s, err := DecodeStateRow(json.RawMessage(sampleRow))
	require.NoError(t, err)

	require.Equal(t, "4b1815", s.ID())
	require.NotNil(t, s.Callsign)
	require.Equal(t, "SWR736  ", *s.Callsign)
	require.Equal(t, "Switzerland", *s.OriginCountry)
	require.Equal(t, int64(1700000000), *s.TimePosition)
	require.Equal(t, int64(1700000001), *s.LastContact)
	require.InDelta(t, 8.5492, *s.Longitude, 1e-9)
	require.InDelta(t, 47.4520, *s.Latitude, 1e-9)
	require.False(t, *s.OnGround)
	require.Nil(t, s.Sensors)
	require.Equal(t, "1000", *s.Squawk)
	require.False(t, *s.SPI)
	require.Equal(t, SourceADSB, *s.PositionSource)
}

func TestDecodeStateRow_NullsStayNil(t *testing.T) {
	row := `["abc123",null,"Germany",null,1700000001,null,null,null,true,null,null,null,[1,2],null,null,false,2,0]`
	s, err := DecodeStateRow(json.RawMessage(row))
	require.NoError(t, err)

	require.Nil(t, s.Callsign)
	require.Nil(t, s.TimePosition)
	require.Nil(t, s.Longitude)
	require.Nil(t, s.Latitude)
	require.Nil(t, s.BaroAltitude)
	require.Nil(t, s.Velocity)
	require.Nil(t, s.Squawk)
	require.True(t, *s.OnGround)
	require.Equal(t, []int{1, 2}, s.Sensors)
	require.Equal(t, SourceMLAT, *s.PositionSource)
}

func TestDecodeStateRow_AllNullRowEncodesAllNulls(t *testing.T) {
	row := "[" + strings.TrimSuffix(strings.Repeat("null,", len(wireKeys)), ",") + "]"
	s, err := DecodeStateRow(json.RawMessage(row))
	require.NoError(t, err)
	require.Empty(t, s.ID())

	b, err := s.Encode()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(b, &fields))
	require.Len(t, fields, len(wireKeys))
	for _, key := range wireKeys {
		v, ok := fields[key]
		require.True(t, ok, key)
		require.Nil(t, v, key)
		require.Contains(t, string(b), `"`+key+`":null`)
	}
}

func TestDecodeStateRow_NullIdentifiersAreKept(t *testing.T) {
	row := `[null,"DLH9LF  ",null,null,null,null,null,null,null,null,null,null,null,null,null,null,null]`
	s, err := DecodeStateRow(json.RawMessage(row))
	require.NoError(t, err)

	b, err := s.Encode()
	require.NoError(t, err)
	require.Contains(t, string(b), `"icao24":null`)
	require.Contains(t, string(b), `"callsign":"DLH9LF  "`)
	require.Contains(t, string(b), `"origin_country":null`)
	require.Contains(t, string(b), `"last_contact":null`)
	require.Contains(t, string(b), `"on_ground":null`)
	require.Contains(t, string(b), `"spi":null`)
	require.Contains(t, string(b), `"position_source":null`)
}

func TestDecodeStateRow_Malformed(t *testing.T) {
	cases := map[string]string{
		"not an array":   `{"icao24":"x"}`,
		"too short":      `["abc",null,"X"]`,
		"bad latitude":   `["abc",null,"X",null,1,null,"north",null,false,null,null,null,null,null,null,false,0]`,
		"numeric icao24": `[42,null,"X",null,1,null,null,null,false,null,null,null,null,null,null,false,0]`,
		"string spi":     `["abc",null,"X",null,1,null,null,null,false,null,null,null,null,null,null,"no",0]`,
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeStateRow(json.RawMessage(row))
			require.ErrorIs(t, err, ErrMalformedState)
		})
	}
}

func TestEncode_ZeroValueIsAllNull(t *testing.T) {
	b, err := StateVector{}.Encode()
	require.NoError(t, err)
	require.Contains(t, string(b), `"squawk":null`)
	require.Contains(t, string(b), `"last_contact":null`)
	require.Contains(t, string(b), `"sensors":null`)
}

func TestEncode_KeyOrder(t *testing.T) {
	s, err := DecodeStateRow(json.RawMessage(sampleRow))
	require.NoError(t, err)
	b, err := s.Encode()
	require.NoError(t, err)
	require.Equal(t,
		`{"icao24":"4b1815","callsign":"SWR736  ","origin_country":"Switzerland","time_position":1700000000,"last_contact":1700000001,"longitude":8.5492,"latitude":47.452,"baro_altitude":1120.14,"on_ground":false,"velocity":98.42,"true_track":272.1,"vertical_rate":-4.23,"sensors":null,"geo_altitude":1158.24,"squawk":"1000","spi":false,"position_source":0}`,
		string(b))
}

func TestPositionSourceString(t *testing.T) {
	require.Equal(t, "ADS-B", SourceADSB.String())
	require.Equal(t, "FLARM", SourceFLARM.String())
	require.Equal(t, "PositionSource(9)", PositionSource(9).String())
}
