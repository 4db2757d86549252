package config

// Constants defining default values for application configuration
const (
	DefaultDBPath      = "./gpress.db"
	DefaultScrapersDir = "./scrapers"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultPipelineInterval = 120     // Minutes between ingest+enrich runs
	DefaultSweepInterval    = 24 * 60 // Minutes between retention sweeps

	DefaultRetentionDays      = 3 // Window for the scheduled daily sweep
	DefaultAdHocRetentionDays = 2 // Window for the 'sweep' subcommand

	DefaultScraperTimeout = 3 // Minutes before a scraper process is killed

	DefaultGeminiModel = "gemini-1.5-flash"

	DefaultLogLevel = "debug"
)
