package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses the poll interval durations
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets stay strings; intervals are durations
// so the poller can consume them directly.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	Market string // IANA timezone of the restaurant (duration cutoff rule)

	// Staff authentication.  A single operator account is enough for a
	// floor board; credentials live in the environment, not a user table.
	JWTSecret     string // secret used to sign JWTs
	AccessTTLMin  int    // access token time-to-live in minutes
	StaffUser     string // staff login name
	StaffPassHash string // bcrypt hash of the staff password

	// Record store.  When AirtableToken is set the Airtable adapter is
	// used; otherwise the MySQL store takes over.
	AirtableToken  string // Airtable API token (empty -> MySQL store)
	AirtableBaseID string // Airtable base id
	AirtableTable  string // Airtable table id or name

	DBUser string // database username (MySQL store)
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	// Scheduling provider.
	CalendlyToken string // Calendly personal access token (empty -> disabled)

	// Message broker for assignment events.
	AMQPURL string // RabbitMQ URL (empty -> library default)

	// Poll cycle intervals.
	TodayPollEvery     time.Duration // today's bookings sweep
	FuturePollEvery    time.Duration // future bookings sweep
	CancelledPollEvery time.Duration // cancelled-booking reconciliation

	FloorPlanFile string // optional JSON layout/policy file

	// Assignment policy toggles.
	StrictSequentialBooking bool // block same-day later bookings on an occupied table
	AllowOverCapacity       bool // permit seating a party larger than the table
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Adapter credentials
// are optional on purpose: a missing token disables that adapter rather
// than failing startup.
func Load() Config {
	return Config{
		Env:    getenv("APP_ENV", "dev"),
		Port:   must("APP_PORT"),
		Market: getenv("MARKET_TZ", "Asia/Singapore"),

		JWTSecret:     must("JWT_SECRET"),
		AccessTTLMin:  mustInt("ACCESS_TOKEN_TTL_MIN"),
		StaffUser:     must("STAFF_USER"),
		StaffPassHash: must("STAFF_PASS_HASH"),

		AirtableToken:  os.Getenv("AIRTABLE_TOKEN"),
		AirtableBaseID: os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:  os.Getenv("AIRTABLE_TABLE"),

		DBUser: os.Getenv("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: os.Getenv("DB_HOST"),
		DBPort: os.Getenv("DB_PORT"),
		DBName: os.Getenv("DB_NAME"),

		CalendlyToken: os.Getenv("CALENDLY_TOKEN"),

		AMQPURL: getenv("RABBITMQ_URL", os.Getenv("AMQP_URL")),

		TodayPollEvery:     parseDur(getenv("POLL_TODAY_EVERY", "5m")),
		FuturePollEvery:    parseDur(getenv("POLL_FUTURE_EVERY", "30m")),
		CancelledPollEvery: parseDur(getenv("POLL_CANCELLED_EVERY", "15m")),

		FloorPlanFile: os.Getenv("FLOOR_PLAN_FILE"),

		StrictSequentialBooking: parseBool(getenv("STRICT_SEQUENTIAL_BOOKING", "true")),
		AllowOverCapacity:       parseBool(getenv("ALLOW_OVER_CAPACITY", "false")),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Minute
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
