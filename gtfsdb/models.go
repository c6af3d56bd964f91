package gtfsdb

import "database/sql"

// Import is one generation of static GTFS data. Rows from older generations
// are deleted once the new generation has been written.
type Import struct {
	ID               int64
	FileLastModified sql.NullString
	CreatedAt        int64
}

type FeedInfo struct {
	FeedPublisherName sql.NullString
	FeedPublisherURL  sql.NullString
	FeedLang          sql.NullString
	FeedStartDate     sql.NullString
	FeedEndDate       sql.NullString
	FeedVersion       sql.NullString
	ImportID          int64
}

type Agency struct {
	AgencyID       string
	AgencyName     sql.NullString
	AgencyURL      sql.NullString
	AgencyTimezone string
	AgencyLang     sql.NullString
	AgencyPhone    sql.NullString
	ImportID       int64
}

type Calendar struct {
	ServiceID string
	Monday    int64
	Tuesday   int64
	Wednesday int64
	Thursday  int64
	Friday    int64
	Saturday  int64
	Sunday    int64
	StartDate string
	EndDate   string
	ImportID  int64
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType int64
	ImportID      int64
}

type Route struct {
	RouteID        string
	AgencyID       sql.NullString
	RouteShortName sql.NullString
	RouteLongName  sql.NullString
	RouteDesc      sql.NullString
	RouteType      sql.NullInt64
	RouteColor     sql.NullString
	RouteTextColor sql.NullString
	ImportID       int64
}

type Trip struct {
	TripID               string
	RouteID              string
	ServiceID            string
	TripHeadsign         sql.NullString
	TripShortName        sql.NullString
	DirectionID          sql.NullInt64
	BlockID              sql.NullString
	ShapeID              sql.NullString
	WheelchairAccessible sql.NullInt64
	BikesAllowed         sql.NullInt64
	ImportID             int64
}

type Shape struct {
	ShapeID           string
	ShapePtLat        float64
	ShapePtLon        float64
	ShapePtSequence   int64
	ShapeDistTraveled sql.NullFloat64
	ImportID          int64
}

type Stop struct {
	ID                 int64
	StopID             string
	StopCode           sql.NullString
	StopName           sql.NullString
	StopDesc           sql.NullString
	StopLat            sql.NullFloat64
	StopLon            sql.NullFloat64
	ZoneID             sql.NullString
	StopURL            sql.NullString
	LocationType       sql.NullInt64
	ParentStation      sql.NullString
	PlatformCode       sql.NullString
	WheelchairBoarding sql.NullInt64
	ImportID           int64
}

type StopTime struct {
	TripID        string
	ArrivalTime   string
	DepartureTime string
	StopID        string
	StopSequence  int64
	StopHeadsign  sql.NullString
	PickupType    sql.NullInt64
	DropOffType   sql.NullInt64
	ImportID      int64
}

// StopIndexEntry is a stop's precomputed search bounding box, keyed by the
// GTFS stop_id.
type StopIndexEntry struct {
	StopID string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// TripRun is one dated occurrence of a trip. ScheduleRelationship follows
// the GTFS-realtime TripDescriptor enum (0 scheduled, 3 canceled, ...).
type TripRun struct {
	ID                   int64
	TripID               string
	RouteID              string
	DirectionID          sql.NullInt64
	StartDate            string
	StartTimestamp       int64
	VehicleID            sql.NullString
	ScheduleRelationship int64
}

// StopTimeIndexRow is one materialized stop-time occurrence. Timestamps are
// Unix milliseconds; UpdatedArrivalTimestamp is set by realtime delays.
type StopTimeIndexRow struct {
	StopID                  string
	StopSequence            int64
	TripID                  string
	TripRunID               int64
	ArrivalTimestamp        int64
	DepartureTimestamp      int64
	UpdatedArrivalTimestamp sql.NullInt64
}

type Vehicle struct {
	VehicleID    string
	Label        sql.NullString
	LicensePlate sql.NullString
	Lat          sql.NullFloat64
	Lon          sql.NullFloat64
	Bearing      sql.NullFloat64
	Speed        sql.NullFloat64
	Timestamp    int64
}

type Alert struct {
	ID              int64
	AlertID         string
	Cause           sql.NullString
	Effect          sql.NullString
	HeaderText      sql.NullString
	DescriptionText sql.NullString
	Timestamp       sql.NullInt64
}

type AlertInformedEntity struct {
	ID          int64
	AlertID     string
	AgencyID    sql.NullString
	RouteID     sql.NullString
	RouteType   sql.NullInt64
	StopID      sql.NullString
	DirectionID sql.NullInt64
	TripRunID   sql.NullInt64
}

type AlertActivePeriod struct {
	ID             int64
	AlertID        string
	StartTimestamp int64
	EndTimestamp   int64
}

type RealtimeShapePoint struct {
	ShapeID    string
	PtSequence int64
	Lat        float64
	Lon        float64
}

// MaintenanceTime is a single-row table recording the quietest ten-minute
// window of the service day, as a minute of day in UTC.
type MaintenanceTime struct {
	ID          int64
	MinuteOfDay int64
}

// StopRoute is a distinct route serving a stop.
type StopRoute struct {
	RouteID        string
	RouteShortName sql.NullString
	RouteLongName  sql.NullString
	RouteType      sql.NullInt64
	RouteColor     sql.NullString
	RouteTextColor sql.NullString
}

// StopArrival is one upcoming arrival at a stop, joined across the
// stop-time index, the schedule tables, and the trip run.
type StopArrival struct {
	TripID                  string
	TripRunID               int64
	RouteID                 string
	RouteShortName          sql.NullString
	TripHeadsign            sql.NullString
	StopHeadsign            sql.NullString
	StopSequence            int64
	ArrivalTimestamp        int64
	UpdatedArrivalTimestamp sql.NullInt64
	StartTimestamp          int64
	ScheduleRelationship    int64
	VehicleID               sql.NullString
}
