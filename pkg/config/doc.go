// Package config loads application configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: .env files
// are merged into the process environment first, then the environment is
// parsed into a struct described by `env` tags. Nested structs such as
// pg.Config or redis.Config keep their own tags, so a binary composes its
// configuration from the configs of the packages it wires.
//
// # Usage
//
//	type Config struct {
//		Addr     string `env:"HTTP_ADDR" envDefault:":8080"`
//		Postgres pg.Config
//		Redis    redis.Config
//	}
//
//	cfg, err := config.Load[Config]()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Parse reads from an explicit map instead of the process environment, which
// keeps tests free of global state.
//
// # Error Handling
//
// Failures wrap ErrParsingConfig or ErrLoadingEnvFile and can be matched with
// errors.Is.
package config
