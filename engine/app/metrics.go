package app

import (
	"go.opentelemetry.io/otel"

	providermetrics "github.com/compozy/woodsage/engine/llm/provider/metrics"
)

func providerRecorder() providermetrics.Recorder {
	rec, err := providermetrics.NewRecorder(otel.GetMeterProvider().Meter("woodsage.llm"))
	if err != nil {
		return providermetrics.Nop()
	}
	return rec
}
