package storage

import "gorm.io/gorm"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS location (
		location_id INTEGER PRIMARY KEY,
		town TEXT,
		country TEXT,
		lat REAL,
		lon REAL,
		dateadded INTEGER,
		timezone INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS forecast (
		forecast_id INTEGER PRIMARY KEY,
		location_id INTEGER,
		time INTEGER,
		temp REAL,
		pressure INTEGER,
		humidity INTEGER,
		clouds INTEGER,
		windspeed REAL,
		winddirection INTEGER,
		symbol INTEGER,
		FOREIGN KEY (location_id) REFERENCES location (location_id) DEFERRABLE INITIALLY DEFERRED
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS forecast_slot ON forecast (location_id, time)`,
}

func createSchema(db *gorm.DB) error {
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
