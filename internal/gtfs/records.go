package gtfs

import (
	"database/sql"
	"strconv"

	"waitemata.arrivals.nz/gtfsdb"
)

// CSV record types for the static feed files, one struct per file. All
// fields are read as strings; conversion to typed columns happens in the
// toModel methods so a blank cell becomes NULL rather than a zero.

type feedInfoRecord struct {
	FeedPublisherName string `csv:"feed_publisher_name"`
	FeedPublisherURL  string `csv:"feed_publisher_url"`
	FeedLang          string `csv:"feed_lang"`
	FeedStartDate     string `csv:"feed_start_date"`
	FeedEndDate       string `csv:"feed_end_date"`
	FeedVersion       string `csv:"feed_version"`
}

type agencyRecord struct {
	AgencyID       string `csv:"agency_id"`
	AgencyName     string `csv:"agency_name"`
	AgencyURL      string `csv:"agency_url"`
	AgencyTimezone string `csv:"agency_timezone"`
	AgencyLang     string `csv:"agency_lang"`
	AgencyPhone    string `csv:"agency_phone"`
}

type calendarRecord struct {
	ServiceID string `csv:"service_id"`
	Monday    string `csv:"monday"`
	Tuesday   string `csv:"tuesday"`
	Wednesday string `csv:"wednesday"`
	Thursday  string `csv:"thursday"`
	Friday    string `csv:"friday"`
	Saturday  string `csv:"saturday"`
	Sunday    string `csv:"sunday"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
}

type calendarDateRecord struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType string `csv:"exception_type"`
}

type routeRecord struct {
	RouteID        string `csv:"route_id"`
	AgencyID       string `csv:"agency_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	RouteDesc      string `csv:"route_desc"`
	RouteType      string `csv:"route_type"`
	RouteColor     string `csv:"route_color"`
	RouteTextColor string `csv:"route_text_color"`
}

type tripRecord struct {
	TripID               string `csv:"trip_id"`
	RouteID              string `csv:"route_id"`
	ServiceID            string `csv:"service_id"`
	TripHeadsign         string `csv:"trip_headsign"`
	TripShortName        string `csv:"trip_short_name"`
	DirectionID          string `csv:"direction_id"`
	BlockID              string `csv:"block_id"`
	ShapeID              string `csv:"shape_id"`
	WheelchairAccessible string `csv:"wheelchair_accessible"`
	BikesAllowed         string `csv:"bikes_allowed"`
}

type shapeRecord struct {
	ShapeID           string `csv:"shape_id"`
	ShapePtLat        string `csv:"shape_pt_lat"`
	ShapePtLon        string `csv:"shape_pt_lon"`
	ShapePtSequence   string `csv:"shape_pt_sequence"`
	ShapeDistTraveled string `csv:"shape_dist_traveled"`
}

type stopRecord struct {
	StopID             string `csv:"stop_id"`
	StopCode           string `csv:"stop_code"`
	StopName           string `csv:"stop_name"`
	StopDesc           string `csv:"stop_desc"`
	StopLat            string `csv:"stop_lat"`
	StopLon            string `csv:"stop_lon"`
	ZoneID             string `csv:"zone_id"`
	StopURL            string `csv:"stop_url"`
	LocationType       string `csv:"location_type"`
	ParentStation      string `csv:"parent_station"`
	PlatformCode       string `csv:"platform_code"`
	WheelchairBoarding string `csv:"wheelchair_boarding"`
}

type stopTimeRecord struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  string `csv:"stop_sequence"`
	StopHeadsign  string `csv:"stop_headsign"`
	PickupType    string `csv:"pickup_type"`
	DropOffType   string `csv:"drop_off_type"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(s string) sql.NullInt64 {
	if s == "" {
		return sql.NullInt64{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

func nullFloat(s string) sql.NullFloat64 {
	if s == "" {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func (r feedInfoRecord) toModel(importID int64) gtfsdb.FeedInfo {
	return gtfsdb.FeedInfo{
		FeedPublisherName: nullString(r.FeedPublisherName),
		FeedPublisherURL:  nullString(r.FeedPublisherURL),
		FeedLang:          nullString(r.FeedLang),
		FeedStartDate:     nullString(r.FeedStartDate),
		FeedEndDate:       nullString(r.FeedEndDate),
		FeedVersion:       nullString(r.FeedVersion),
		ImportID:          importID,
	}
}

func (r agencyRecord) toModel(importID int64) gtfsdb.Agency {
	return gtfsdb.Agency{
		AgencyID:       r.AgencyID,
		AgencyName:     nullString(r.AgencyName),
		AgencyURL:      nullString(r.AgencyURL),
		AgencyTimezone: r.AgencyTimezone,
		AgencyLang:     nullString(r.AgencyLang),
		AgencyPhone:    nullString(r.AgencyPhone),
		ImportID:       importID,
	}
}

func (r calendarRecord) toModel(importID int64) gtfsdb.Calendar {
	return gtfsdb.Calendar{
		ServiceID: r.ServiceID,
		Monday:    parseInt(r.Monday),
		Tuesday:   parseInt(r.Tuesday),
		Wednesday: parseInt(r.Wednesday),
		Thursday:  parseInt(r.Thursday),
		Friday:    parseInt(r.Friday),
		Saturday:  parseInt(r.Saturday),
		Sunday:    parseInt(r.Sunday),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		ImportID:  importID,
	}
}

func (r calendarDateRecord) toModel(importID int64) gtfsdb.CalendarDate {
	return gtfsdb.CalendarDate{
		ServiceID:     r.ServiceID,
		Date:          r.Date,
		ExceptionType: parseInt(r.ExceptionType),
		ImportID:      importID,
	}
}

func (r routeRecord) toModel(importID int64) gtfsdb.Route {
	return gtfsdb.Route{
		RouteID:        r.RouteID,
		AgencyID:       nullString(r.AgencyID),
		RouteShortName: nullString(r.RouteShortName),
		RouteLongName:  nullString(r.RouteLongName),
		RouteDesc:      nullString(r.RouteDesc),
		RouteType:      nullInt(r.RouteType),
		RouteColor:     nullString(r.RouteColor),
		RouteTextColor: nullString(r.RouteTextColor),
		ImportID:       importID,
	}
}

func (r tripRecord) toModel(importID int64) gtfsdb.Trip {
	return gtfsdb.Trip{
		TripID:               r.TripID,
		RouteID:              r.RouteID,
		ServiceID:            r.ServiceID,
		TripHeadsign:         nullString(r.TripHeadsign),
		TripShortName:        nullString(r.TripShortName),
		DirectionID:          nullInt(r.DirectionID),
		BlockID:              nullString(r.BlockID),
		ShapeID:              nullString(r.ShapeID),
		WheelchairAccessible: nullInt(r.WheelchairAccessible),
		BikesAllowed:         nullInt(r.BikesAllowed),
		ImportID:             importID,
	}
}

func (r shapeRecord) toModel(importID int64) gtfsdb.Shape {
	return gtfsdb.Shape{
		ShapeID:           r.ShapeID,
		ShapePtLat:        parseFloat(r.ShapePtLat),
		ShapePtLon:        parseFloat(r.ShapePtLon),
		ShapePtSequence:   parseInt(r.ShapePtSequence),
		ShapeDistTraveled: nullFloat(r.ShapeDistTraveled),
		ImportID:          importID,
	}
}

func (r stopRecord) toModel(importID int64) gtfsdb.Stop {
	return gtfsdb.Stop{
		StopID:             r.StopID,
		StopCode:           nullString(r.StopCode),
		StopName:           nullString(r.StopName),
		StopDesc:           nullString(r.StopDesc),
		StopLat:            nullFloat(r.StopLat),
		StopLon:            nullFloat(r.StopLon),
		ZoneID:             nullString(r.ZoneID),
		StopURL:            nullString(r.StopURL),
		LocationType:       nullInt(r.LocationType),
		ParentStation:      nullString(r.ParentStation),
		PlatformCode:       nullString(r.PlatformCode),
		WheelchairBoarding: nullInt(r.WheelchairBoarding),
		ImportID:           importID,
	}
}

func (r stopTimeRecord) toModel(importID int64) gtfsdb.StopTime {
	return gtfsdb.StopTime{
		TripID:        r.TripID,
		ArrivalTime:   r.ArrivalTime,
		DepartureTime: r.DepartureTime,
		StopID:        r.StopID,
		StopSequence:  parseInt(r.StopSequence),
		StopHeadsign:  nullString(r.StopHeadsign),
		PickupType:    nullInt(r.PickupType),
		DropOffType:   nullInt(r.DropOffType),
		ImportID:      importID,
	}
}
