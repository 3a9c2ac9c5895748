package markers

import "github.com/banshee-data/gaitlab/internal/monitoring"

func logf(format string, v ...interface{}) {
	monitoring.Logf("[markers] "+format, v...)
}
