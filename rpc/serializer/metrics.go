package serializer

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// codecMetrics records traffic of one serializer implementation
type codecMetrics struct {
	encoded      *metrics.Counter
	decoded      *metrics.Counter
	errors       *metrics.Counter
	encodedBytes *metrics.Histogram
	encodeTime   *metrics.Histogram
	decodeTime   *metrics.Histogram
}

func newCodecMetrics(name string) *codecMetrics {
	label := fmt.Sprintf(`{serializer=%q}`, name)
	return &codecMetrics{
		encoded:      metrics.GetOrCreateCounter("dgrid_serializer_encoded_total" + label),
		decoded:      metrics.GetOrCreateCounter("dgrid_serializer_decoded_total" + label),
		errors:       metrics.GetOrCreateCounter("dgrid_serializer_errors_total" + label),
		encodedBytes: metrics.GetOrCreateHistogram("dgrid_serializer_message_bytes" + label),
		encodeTime:   metrics.GetOrCreateHistogram("dgrid_serializer_encode_seconds" + label),
		decodeTime:   metrics.GetOrCreateHistogram("dgrid_serializer_decode_seconds" + label),
	}
}

func (m *codecMetrics) observeEncode(start time.Time, size int, err error) {
	if err != nil {
		m.errors.Inc()
		return
	}
	m.encoded.Inc()
	m.encodedBytes.Update(float64(size))
	m.encodeTime.UpdateDuration(start)
}

func (m *codecMetrics) observeDecode(start time.Time, err error) {
	if err != nil {
		m.errors.Inc()
		return
	}
	m.decoded.Inc()
	m.decodeTime.UpdateDuration(start)
}
