package tracing

import (
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/modules/config"
	"scalp_bot/pkg/tracing"
)

func Module() fx.Option {
	return fx.Module("tracing",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (opentracing.Tracer, error) {
				tracing.SetServiceName(cfg.Service.Name)
				tracer, closer, err := tracing.InitTracer(tracing.Config{
					Enabled:    cfg.Tracing.Enabled,
					Host:       cfg.Tracing.Host,
					Port:       cfg.Tracing.Port,
					SampleRate: cfg.Tracing.SampleRate,
				}, log.Named("jaeger"), reg)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.StopHook(closer))
				return tracer, nil
			},
		),
		// трейсер глобальный, движок берёт его через opentracing
		fx.Invoke(func(opentracing.Tracer) {}),
	)
}
