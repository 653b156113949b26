package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Database: Database{
			Driver:          "mysql",
			Host:            "127.0.0.1",
			Port:            3306,
			User:            "archivist",
			Name:            "archivist",
			ConnectTimeout:  10 * time.Second,
			ConnMaxLifetime: time.Hour,
		},
		Dropbox: Dropbox{
			Root:           "/kamerabilder",
			RequestTimeout: time.Minute,
		},
		Logs: Logs{
			Dir:                 "data/logs",
			AllowedParticipants: []string{},
		},
		Pictures: Pictures{
			PoolSize:      8,
			MaxRetries:    3,
			RetryDelay:    500 * time.Millisecond,
			CheckpointDir: "~/.local/share/archivist/checkpoints",
		},
		Faces: Faces{
			Names:     map[int]string{},
			LinksFile: "data/faces.json",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
