package main

import (
	"github.com/dmitrymomot/memorialkit/svc/api"
)

// Store backends accepted by STORE_BACKEND.
const (
	backendMemory = "memory"
	backendMongo  = "mongo"
	backendRedis  = "redis"
)

type appConfig struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"memorialkit"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"` // memory or mongo

	API api.Config
}
