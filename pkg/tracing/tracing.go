package tracing

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	jCfg "github.com/uber/jaeger-client-go/config"
	jZap "github.com/uber/jaeger-client-go/log/zap"
	"github.com/uber/jaeger-lib/metrics"
	jProm "github.com/uber/jaeger-lib/metrics/prometheus"
	"go.uber.org/zap"
)

var (
	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

type Config struct {
	Enabled bool
	Host    string
	Port    int
	// Доля сэмплируемых циклов, 0: все.
	SampleRate float64
}

// InitTracer поднимает Jaeger и делает его глобальным. С Enabled=false
// возвращает noop-трейсер, спаны в движке при этом ничего не стоят.
// Если reg не nil, метрики трейсера уходят в тот же реестр Prometheus.
func InitTracer(conf Config, log *zap.Logger, reg prometheus.Registerer) (opentracing.Tracer, func() error, error) {
	if !conf.Enabled {
		t := opentracing.NoopTracer{}
		opentracing.SetGlobalTracer(t)
		return t, func() error { return nil }, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	sampler := &jCfg.SamplerConfig{Type: "const", Param: 1}
	if conf.SampleRate > 0 && conf.SampleRate < 1 {
		sampler = &jCfg.SamplerConfig{Type: "probabilistic", Param: conf.SampleRate}
	}

	cfg := &jCfg.Configuration{
		ServiceName: serviceName,
		Sampler:     sampler,
		Reporter: &jCfg.ReporterConfig{
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	var factory metrics.Factory = metrics.NullFactory
	if reg != nil {
		factory = jProm.New(jProm.WithRegisterer(reg))
	}

	tracer, closer, err := cfg.NewTracer(
		jCfg.Metrics(factory),
		jCfg.Logger(jZap.NewLogger(log)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("jaeger tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer.Close, nil
}
