package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"weather-monitor/internal/display"
)

// currentWindow bounds how far ahead, in seconds, the current forecast slot
// may be. Slots are three hours apart.
const currentWindow = 10799

// upsertChunk keeps a bulk upsert statement below SQLite's default limit of
// 999 bound variables.
const upsertChunk = 80

const upsertRow = `((SELECT forecast_id FROM forecast WHERE location_id = ? AND time = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// TimezoneResolver looks up the UTC offset, in whole hours, of a point.
type TimezoneResolver interface {
	OffsetHours(ctx context.Context, lat, lon float64) (int, error)
}

// Database implements location and forecast persistence on top of an Engine.
type Database struct {
	engine    *Engine
	timezones TimezoneResolver
	symbols   *display.Resolver
	logger    *log.Logger
	now       func() time.Time
}

func NewDatabase(path string, timezones TimezoneResolver, logger *log.Logger) (*Database, error) {
	if logger == nil {
		logger = log.Default()
	}

	engine, err := Open(path, WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{
		engine:    engine,
		timezones: timezones,
		symbols:   display.NewResolver(logger),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Engine exposes the underlying job queue.
func (d *Database) Engine() *Engine {
	return d.engine
}

// SaveLocation resolves the location's UTC offset and inserts it. A location
// whose id is already stored is rejected.
func (d *Database) SaveLocation(ctx context.Context, loc Location) (Location, error) {
	if d.timezones == nil {
		return loc, errors.New("no timezone resolver configured")
	}
	offset, err := d.timezones.OffsetHours(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return loc, fmt.Errorf("resolve timezone for %s: %w", loc.Town, err)
	}
	loc.Timezone = offset
	loc.DateAdded = d.now().Unix()

	t, err := d.engine.Submit(PriorityNormal,
		`INSERT INTO location (`+locationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.Town, loc.Country, loc.Lat, loc.Lon, loc.DateAdded, loc.Timezone)
	if err != nil {
		return loc, err
	}
	if err := t.Wait(); err != nil {
		return loc, fmt.Errorf("insert location %d: %w", loc.ID, err)
	}
	return loc, nil
}

// RemoveLocation deletes a location and its forecasts. Both deletes share a
// priority so the forecasts always go first.
func (d *Database) RemoveLocation(id int64) error {
	children, err := d.engine.Submit(PriorityHigh, `DELETE FROM forecast WHERE location_id = ?`, id)
	if err != nil {
		return err
	}
	parent, err := d.engine.Submit(PriorityHigh, `DELETE FROM location WHERE location_id = ?`, id)
	if err != nil {
		_ = children.Wait()
		return err
	}

	if err := children.Wait(); err != nil {
		return fmt.Errorf("delete forecasts of location %d: %w", id, err)
	}
	if err := parent.Wait(); err != nil {
		return fmt.Errorf("delete location %d: %w", id, err)
	}
	return nil
}

// LocationByID returns ErrNotFound when id is not stored.
func (d *Database) LocationByID(id int64) (Location, error) {
	cur, err := d.engine.Query(PriorityNormal,
		`SELECT `+locationColumns+` FROM location WHERE location_id = ?`, id)
	if err != nil {
		return Location{}, err
	}
	defer cur.Close()

	if cur.Next() {
		return locationFromRow(cur.Row()), nil
	}
	if err := cur.Err(); err != nil {
		return Location{}, err
	}
	return Location{}, fmt.Errorf("%w: location_id %d is not in database", ErrNotFound, id)
}

// Locations returns every stored location, oldest first.
func (d *Database) Locations() ([]Location, error) {
	cur, err := d.engine.Query(PriorityNormal,
		`SELECT `+locationColumns+` FROM location ORDER BY dateadded ASC`)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var locations []Location
	for cur.Next() {
		locations = append(locations, locationFromRow(cur.Row()))
	}
	return locations, cur.Err()
}

// Forecasts returns every stored slot of a location in time order.
func (d *Database) Forecasts(locationID int64) ([]Forecast, error) {
	cur, err := d.engine.Query(PriorityNormal,
		`SELECT `+forecastColumns+` FROM forecast WHERE location_id = ? ORDER BY time ASC`, locationID)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var forecasts []Forecast
	for cur.Next() {
		forecasts = append(forecasts, forecastFromRow(cur.Row()))
	}
	return forecasts, cur.Err()
}

// CurrentForecast returns the nearest upcoming slot within the next three
// hours, or the NotAvailable placeholder.
func (d *Database) CurrentForecast(locationID int64) Forecast {
	now := d.now().Unix()
	cur, err := d.engine.Query(PriorityNormal,
		`SELECT `+forecastColumns+` FROM forecast
		WHERE location_id = ? AND time > ? AND time - ? < ?
		ORDER BY time ASC LIMIT 1`,
		locationID, now, now, currentWindow)
	if err != nil {
		d.logger.Printf("ERROR: current forecast for %d: %v", locationID, err)
		return NotAvailable(locationID)
	}
	defer cur.Close()

	if cur.Next() {
		return forecastFromRow(cur.Row())
	}
	if err := cur.Err(); err != nil {
		d.logger.Printf("ERROR: current forecast for %d: %v", locationID, err)
	} else {
		d.logger.Printf("ERROR: couldn't find any forecast for %d", locationID)
	}
	return NotAvailable(locationID)
}

// SaveForecasts upserts a batch keyed by (location_id, time). Existing slots
// keep their forecast_id and are replaced in place. The batch is written as
// one job so it lands whole or not at all.
func (d *Database) SaveForecasts(batch ForecastBatch) error {
	if _, err := d.LocationByID(batch.LocationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			d.logger.Printf("CRITICAL: forecast batch for location %d but the location is not stored", batch.LocationID)
			return fmt.Errorf("%w: %d", ErrUnknownLocation, batch.LocationID)
		}
		return err
	}
	if len(batch.Forecasts) == 0 {
		return nil
	}

	t, err := d.engine.SubmitTx(PriorityNormal, upsertStatements(batch)...)
	if err != nil {
		return err
	}
	if err := t.Wait(); err != nil {
		return fmt.Errorf("save forecasts for location %d: %w", batch.LocationID, err)
	}
	return nil
}

func upsertStatements(batch ForecastBatch) []Statement {
	var stmts []Statement
	forecasts := batch.Forecasts
	for start := 0; start < len(forecasts); start += upsertChunk {
		end := min(start+upsertChunk, len(forecasts))

		var sb strings.Builder
		sb.WriteString(`INSERT OR REPLACE INTO forecast (` + forecastColumns + `) VALUES `)
		args := make([]any, 0, (end-start)*11)
		for i, f := range forecasts[start:end] {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(upsertRow)
			args = append(args,
				batch.LocationID, f.Time,
				batch.LocationID, f.Time, f.Temp, f.Pressure, f.Humidity,
				f.Clouds, f.WindSpeed, f.WindDirection, symbolArg(f.SymbolCode))
		}
		stmts = append(stmts, Statement{SQL: sb.String(), Args: args})
	}
	return stmts
}

func symbolArg(code string) any {
	if n, err := strconv.Atoi(strings.TrimSpace(code)); err == nil {
		return n
	}
	return code
}

// RemoveOldForecasts purges slots whose time has passed.
func (d *Database) RemoveOldForecasts() error {
	t, err := d.engine.Submit(PriorityLow, `DELETE FROM forecast WHERE time < ?`, d.now().Unix())
	if err != nil {
		return err
	}
	return t.Wait()
}

// Symbol resolves the display glyph of f at its location's local time.
func (d *Database) Symbol(f Forecast) string {
	if !f.Available() {
		return display.NotAvailableSymbol
	}
	loc, err := d.LocationByID(f.LocationID)
	if err != nil {
		d.logger.Printf("ERROR: symbol for forecast %d: %v", f.ID, err)
		return d.symbols.Resolve(f.SymbolCode, nil)
	}
	return d.SymbolAt(f, loc)
}

// SymbolAt is Symbol for callers that already hold the location.
func (d *Database) SymbolAt(f Forecast, loc Location) string {
	if !f.Available() {
		return display.NotAvailableSymbol
	}
	return d.symbols.Resolve(f.SymbolCode, &display.Moment{Unix: f.Time, OffsetHours: loc.Timezone})
}

// Close stops the engine once queued jobs have run.
func (d *Database) Close() error {
	return d.engine.Close()
}
