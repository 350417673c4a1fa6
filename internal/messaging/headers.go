package messaging

import (
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

var _ propagation.TextMapCarrier = HeaderCarrier{}

// HeaderCarrier exposes Kafka record headers to OpenTelemetry propagators.
// Keys match case-insensitively; Set replaces every existing value for a key.
type HeaderCarrier struct {
	headers *[]kafka.Header
}

func NewHeaderCarrier(msg *kafka.Message) HeaderCarrier {
	return HeaderCarrier{headers: &msg.Headers}
}

func (c HeaderCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}

func (c HeaderCarrier) Set(key, value string) {
	kept := (*c.headers)[:0]
	for _, h := range *c.headers {
		if !strings.EqualFold(h.Key, key) {
			kept = append(kept, h)
		}
	}
	*c.headers = append(kept, kafka.Header{Key: key, Value: []byte(value)})
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
