package storage

// Location is a place the user tracks. ID is the weather provider's city id.
type Location struct {
	ID        int64   `json:"id"`
	Town      string  `json:"town"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	DateAdded int64   `json:"date_added"`
	Timezone  int     `json:"timezone_offset"`
}

// NotAvailableCode is the symbol code of the placeholder forecast.
const NotAvailableCode = "000"

// Forecast is one forecast slot for a location. Time is the validity time
// of the sample, Temp is in kelvin.
type Forecast struct {
	ID            int64   `json:"id"`
	LocationID    int64   `json:"location_id"`
	Time          int64   `json:"time"`
	Temp          float64 `json:"temp"`
	Pressure      int     `json:"pressure"`
	Humidity      int     `json:"humidity"`
	Clouds        int     `json:"clouds"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection int     `json:"wind_direction"`
	SymbolCode    string  `json:"symbol_code"`
}

// NotAvailable is the placeholder returned when a location has no current
// forecast. It is never stored.
func NotAvailable(locationID int64) Forecast {
	return Forecast{LocationID: locationID, SymbolCode: NotAvailableCode}
}

// Available reports whether f is a stored forecast rather than the
// placeholder.
func (f Forecast) Available() bool {
	return f.ID != 0 || f.SymbolCode != NotAvailableCode
}

// ForecastBatch is a freshly fetched series for one location.
type ForecastBatch struct {
	LocationID int64
	Forecasts  []Forecast
}

const (
	locationColumns = `location_id, town, country, lat, lon, dateadded, timezone`
	forecastColumns = `forecast_id, location_id, time, temp, pressure, humidity, clouds, windspeed, winddirection, symbol`
)

func locationFromRow(r Row) Location {
	return Location{
		ID:        r.Int64(0),
		Town:      r.String(1),
		Country:   r.String(2),
		Lat:       r.Float64(3),
		Lon:       r.Float64(4),
		DateAdded: r.Int64(5),
		Timezone:  r.Int(6),
	}
}

func forecastFromRow(r Row) Forecast {
	return Forecast{
		ID:            r.Int64(0),
		LocationID:    r.Int64(1),
		Time:          r.Int64(2),
		Temp:          r.Float64(3),
		Pressure:      r.Int(4),
		Humidity:      r.Int(5),
		Clouds:        r.Int(6),
		WindSpeed:     r.Float64(7),
		WindDirection: r.Int(8),
		SymbolCode:    r.String(9),
	}
}
