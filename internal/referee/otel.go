package referee

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/m3ts/referee/internal/referee"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
