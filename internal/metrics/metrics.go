// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FeedEventsTotal — число принятых FEED_DATA событий по видам.
	FeedEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamer",
		Subsystem: "feed",
		Name:      "events_total",
		Help:      "Total number of feed events received, by event kind",
	}, []string{"kind"})

	// DecodeSkips — записи, пропущенные при декодировании (нет трансляции символа,
	// неполный хвостовой блок).
	DecodeSkips = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamer",
		Subsystem: "feed",
		Name:      "decode_skips_total",
		Help:      "Records skipped during compact-event decoding",
	})

	// KeepalivesTotal — число отправленных KEEPALIVE сообщений.
	KeepalivesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamer",
		Subsystem: "ws",
		Name:      "keepalives_total",
		Help:      "Total number of KEEPALIVE messages sent",
	})

	// ProtocolErrors — число фатальных ошибок протокола (ERROR-фреймы, transport).
	ProtocolErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamer",
		Subsystem: "ws",
		Name:      "protocol_errors_total",
		Help:      "Fatal protocol or transport errors observed on the stream",
	})

	// SerializeErrors — число ошибок сериализации записей перед публикацией.
	SerializeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamer",
		Subsystem: "sink",
		Name:      "serialize_errors_total",
		Help:      "Record serialization errors before publishing",
	})

	// PublishErrors — число ошибок при публикации записей в Kafka.
	PublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamer",
		Subsystem: "sink",
		Name:      "publish_errors_total",
		Help:      "Total number of errors when publishing records to Kafka",
	})

	// PublishLatency — гистограмма задержек от декодирования до публикации.
	PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streamer",
		Subsystem: "sink",
		Name:      "publish_latency_seconds",
		Help:      "Latency from decoding a record to publishing it (seconds)",
		Buckets:   prometheus.DefBuckets,
	})
)

// Register регистрирует все метрики в заданном реестре.
// Можно вызвать без аргументов, чтобы зарегистрировать в DefaultRegisterer.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			FeedEventsTotal,
			DecodeSkips,
			KeepalivesTotal,
			ProtocolErrors,
			SerializeErrors,
			PublishErrors,
			PublishLatency,
		)
	})
}
