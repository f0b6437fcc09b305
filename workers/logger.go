package workers

import "m2_harvester/models"

// LogFunc mirrors worker outcomes into the crawl_logs table. The source
// argument names the worker ("media", "healthcheck").
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger is the default until a store-backed logger is injected.
var NoOpLogger LogFunc = func(models.LogLevel, string, string) {}
