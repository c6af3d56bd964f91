package realtime

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Wire types for the JSON rendition of a GTFS-realtime feed. The upstream
// proxy renders protobuf as JSON with a couple of quirks: singleton fields
// may arrive as a bare object instead of a one-element array, timestamps are
// fractional POSIX seconds, and bearing is sometimes a quoted number.

// Many decodes a field that may be either a single T or an array of T.
type Many[T any] []T

func (m *Many[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, (*[]T)(m))
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*m = Many[T]{one}
	return nil
}

// UnixTime decodes a POSIX timestamp that may carry a fractional part.
type UnixTime struct {
	time.Time
}

func (u *UnixTime) UnmarshalJSON(data []byte) error {
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return err
	}
	u.Time = time.UnixMilli(int64(math.Round(seconds * 1000))).UTC()
	return nil
}

// MaybeString decodes a number that is sometimes serialized as a string.
type MaybeString float64

func (m *MaybeString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*m = MaybeString(f)
		return nil
	}
	return json.Unmarshal(trimmed, (*float64)(m))
}

// TripDescriptor ScheduleRelationship values.
const (
	TripScheduled  = 0
	TripAdded      = 1
	TripCanceled   = 3
	TripDuplicated = 6
	TripDeleted    = 7
)

type FeedMessage struct {
	Header FeedHeader   `json:"header"`
	Entity []FeedEntity `json:"entity"`
}

type FeedHeader struct {
	GtfsRealtimeVersion string    `json:"gtfs_realtime_version"`
	Incrementality      *int      `json:"incrementality"`
	Timestamp           *UnixTime `json:"timestamp"`
}

type FeedEntity struct {
	ID         string           `json:"id"`
	IsDeleted  *bool            `json:"is_deleted"`
	TripUpdate *TripUpdate      `json:"trip_update"`
	Vehicle    *VehiclePosition `json:"vehicle"`
	Alert      *Alert           `json:"alert"`
	Shape      *Shape           `json:"shape"`
}

type TripUpdate struct {
	Trip           TripDescriptor        `json:"trip"`
	Vehicle        *VehicleDescriptor    `json:"vehicle"`
	StopTimeUpdate *Many[StopTimeUpdate] `json:"stop_time_update"`
	Timestamp      *UnixTime             `json:"timestamp"`
	Delay          *int64                `json:"delay"`
	TripProperties *TripProperties       `json:"trip_properties"`
}

type TripProperties struct {
	TripID    *string `json:"trip_id"`
	StartDate *string `json:"start_date"`
	StartTime *string `json:"start_time"`
	ShapeID   *string `json:"shape_id"`
}

type StopTimeEvent struct {
	Delay       *int64 `json:"delay"`
	Time        *int64 `json:"time"`
	Uncertainty *int64 `json:"uncertainty"`
}

type StopTimeUpdate struct {
	StopSequence         *int64         `json:"stop_sequence"`
	StopID               *string        `json:"stop_id"`
	Arrival              *StopTimeEvent `json:"arrival"`
	Departure            *StopTimeEvent `json:"departure"`
	ScheduleRelationship *int64         `json:"schedule_relationship"`
}

type TripDescriptor struct {
	TripID               *string `json:"trip_id"`
	RouteID              *string `json:"route_id"`
	DirectionID          *int64  `json:"direction_id"`
	StartTime            *string `json:"start_time"`
	StartDate            *string `json:"start_date"`
	ScheduleRelationship *int64  `json:"schedule_relationship"`
}

type VehicleDescriptor struct {
	ID           *string `json:"id"`
	Label        *string `json:"label"`
	LicensePlate *string `json:"license_plate"`
}

type Position struct {
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Bearing   *MaybeString `json:"bearing"`
	Odometer  *float64     `json:"odometer"`
	Speed     *float64     `json:"speed"`
}

type VehiclePosition struct {
	Trip                *TripDescriptor    `json:"trip"`
	Vehicle             *VehicleDescriptor `json:"vehicle"`
	Position            *Position          `json:"position"`
	CurrentStopSequence *int64             `json:"current_stop_sequence"`
	StopID              *string            `json:"stop_id"`
	CurrentStatus       *int64             `json:"current_status"`
	Timestamp           *UnixTime          `json:"timestamp"`
	OccupancyStatus     *int64             `json:"occupancy_status"`
}

type TimeRange struct {
	Start *uint64 `json:"start"`
	End   *uint64 `json:"end"`
}

type EntitySelector struct {
	AgencyID    *string         `json:"agency_id"`
	RouteID     *string         `json:"route_id"`
	RouteType   *int64          `json:"route_type"`
	Trip        *TripDescriptor `json:"trip"`
	StopID      *string         `json:"stop_id"`
	DirectionID *int64          `json:"direction_id"`
}

type Translation struct {
	Text     string  `json:"text"`
	Language *string `json:"language"`
}

type TranslatedString struct {
	Translation *Many[Translation] `json:"translation"`
}

// Get returns the translation for the given language. A feed with a single
// translation is assumed to be in that language.
func (t *TranslatedString) Get(lang string) *string {
	if t == nil || t.Translation == nil {
		return nil
	}
	translations := *t.Translation
	if len(translations) == 1 {
		return &translations[0].Text
	}
	for i := range translations {
		if translations[i].Language != nil && *translations[i].Language == lang {
			return &translations[i].Text
		}
	}
	return nil
}

type Alert struct {
	ActivePeriod    *Many[TimeRange]      `json:"active_period"`
	InformedEntity  *Many[EntitySelector] `json:"informed_entity"`
	Cause           *string               `json:"cause"`
	Effect          *string               `json:"effect"`
	HeaderText      *TranslatedString     `json:"header_text"`
	DescriptionText *TranslatedString     `json:"description_text"`
	SeverityLevel   *string               `json:"severity_level"`
}

type Shape struct {
	ShapeID         *string `json:"shape_id"`
	EncodedPolyline *string `json:"encoded_polyline"`
}
