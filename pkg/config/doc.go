// Package config loads typed configuration structs from the environment.
//
// Fields are described with caarlos0/env tags. A .env file in the working
// directory is loaded once, before the first parse, and never overrides
// variables already set in the process environment. Each struct type is parsed
// once and cached for the life of the process.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
